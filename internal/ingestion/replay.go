// MIT License
//
// Copyright (c) 2026 Eboreg
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package ingestion

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/classifier"
	"github.com/Eboreg/spodcat-backend/internal/database/models"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/geoip"
	"github.com/Eboreg/spodcat-backend/internal/logquery"
	"github.com/Eboreg/spodcat-backend/internal/metrics"
)

// ReplayOptions selects what to replay. Without Complete, the window starts
// strictly after the newest stored audio log for the podcast, so overlapping
// runs stay idempotent.
type ReplayOptions struct {
	PodcastSlug string
	Environment string
	Complete    bool
	NoBots      bool
}

// Report is the aggregate outcome of one replay batch. Row-level failures
// are collected here instead of aborting the batch.
type Report struct {
	PodcastSlug string   `json:"podcast_slug"`
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors"`
}

// Replayer pulls historic audio-request rows from the external query
// service and upserts them as audio logs.
type Replayer struct {
	client     logquery.Client
	repo       repositories.RequestLogRepository
	classifier *classifier.Classifier
	geo        *geoip.Service
	logger     *pterm.Logger
	loc        *time.Location
}

func NewReplayer(
	client logquery.Client,
	repo repositories.RequestLogRepository,
	cls *classifier.Classifier,
	geo *geoip.Service,
	logger *pterm.Logger,
	loc *time.Location,
) *Replayer {
	if loc == nil {
		loc = time.Local
	}
	return &Replayer{
		client:     client,
		repo:       repo,
		classifier: cls,
		geo:        geo,
		logger:     logger,
		loc:        loc,
	}
}

// ReplayAudioLogs runs one sequential replay pass for a podcast. Rows whose
// object key matches no episode audio file are skipped; so are bot rows when
// NoBots is set. A non-nil error means the batch could not run at all;
// per-row failures only land in the report.
func (r *Replayer) ReplayAudioLogs(ctx context.Context, opts ReplayOptions) (*Report, error) {
	report := &Report{PodcastSlug: opts.PodcastSlug, Errors: []string{}}

	query := logquery.Query{
		PodcastSlug:   opts.PodcastSlug,
		Environment:   opts.Environment,
		FromInclusive: false,
	}
	if !opts.Complete {
		latest, err := r.repo.LatestAudioLogTime(ctx, opts.PodcastSlug)
		if err != nil {
			return nil, err
		}
		query.From = latest
	}

	rows, err := r.client.GetAudioRequestLogs(ctx, query)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Replaying audio request logs",
		r.logger.Args("podcast", opts.PodcastSlug, "rows", len(rows)))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		episode, err := r.repo.FindEpisodeByAudioFile(ctx, opts.PodcastSlug, row.ObjectKey)
		if err != nil {
			report.addError(err)
			continue
		}
		if episode == nil {
			report.Skipped++
			metrics.LogsIngested.WithLabelValues("audio", "skipped").Inc()
			continue
		}

		addr := stripPort(row.CallerIPAddress)
		log := &models.EpisodeAudioRequestLog{
			Created:          row.TimeGenerated.In(r.loc),
			PathInfo:         row.ObjectKey,
			RemoteAddr:       addr,
			UserAgent:        row.UserAgentHeader,
			Referrer:         row.ReferrerHeader,
			EpisodeID:        episode.ID,
			DurationMs:       row.DurationMs,
			ResponseBodySize: row.ResponseBodySize,
			StatusCode:       row.StatusCode,
		}

		classification, ipCategory := r.classifier.Classify(row.UserAgentHeader, row.ReferrerHeader, addr)
		log.RemoteAddrCategory = string(ipCategory)
		log.IsBot = ipCategory.IsBot()

		if classification == nil {
			metrics.ClassificationMisses.Inc()
		} else {
			log.IsBot = classification.IsBot
			log.ReferrerName = classification.ReferrerName
			log.ReferrerCategory = classification.ReferrerCategory

			ua, err := r.repo.GetOrCreateUserAgent(ctx, &models.UserAgent{
				Raw:            row.UserAgentHeader,
				Type:           string(classification.Type),
				Name:           classification.Name,
				IsBot:          classification.IsBot,
				DeviceName:     classification.DeviceName,
				DeviceCategory: string(classification.DeviceCategory),
			})
			if err != nil {
				report.addError(err)
				continue
			}
			log.UserAgentID = &ua.ID
		}

		if opts.NoBots && log.IsBot {
			report.Skipped++
			metrics.LogsIngested.WithLabelValues("audio", "suppressed").Inc()
			continue
		}

		if r.geo != nil {
			geo, err := r.geo.GetOrCreate(ctx, addr)
			if err != nil {
				metrics.GeoIPLookups.WithLabelValues("error").Inc()
				r.logger.Warn("GeoIP lookup failed during replay",
					r.logger.Args("ip", addr, "error", err))
			} else if geo != nil {
				log.GeoIPAddr = &geo.IP
			}
		}

		wasCreated, err := r.repo.UpsertAudioLog(ctx, log)
		if err != nil {
			report.addError(err)
			continue
		}
		if wasCreated {
			report.Created++
			metrics.LogsIngested.WithLabelValues("audio", "created").Inc()
			r.logger.Info(fmt.Sprintf("%s\t%s\t%s",
				log.Created.Format("2006-01-02 15:04:05"), addr, episode.Name))
		} else {
			report.Updated++
			metrics.LogsIngested.WithLabelValues("audio", "updated").Inc()
		}
	}

	if len(report.Errors) > 0 {
		r.logger.Warn("Replay finished with row errors",
			r.logger.Args("podcast", opts.PodcastSlug, "errors", len(report.Errors)))
	}
	return report, nil
}

func (report *Report) addError(err error) {
	report.Errors = append(report.Errors, err.Error())
	metrics.ReplayErrors.Inc()
}

// stripPort removes an ip:port suffix from a caller address. Addresses
// without a port (including bare IPv6) pass through unchanged.
func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
