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

// Package ingestion turns classified requests into persisted log rows: the
// live path for hits forwarded by the web layer, the replay path for rows
// pulled from the external access-log query service, and the backfill jobs
// that fill in reverse-DNS hosts and geo references after the fact.
package ingestion

import (
	"context"
	"time"

	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/classifier"
	"github.com/Eboreg/spodcat-backend/internal/database/models"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/geoip"
	"github.com/Eboreg/spodcat-backend/internal/metrics"
)

// RequestContext carries the request attributes the web layer forwards for
// a live hit.
type RequestContext struct {
	UserAgent  string
	Referer    string
	RemoteAddr string
	PathInfo   string
}

// Ingestor records live hits. When NoBots is set, rows classified as bots
// are silently dropped instead of stored.
type Ingestor struct {
	repo       repositories.RequestLogRepository
	classifier *classifier.Classifier
	geo        *geoip.Service
	logger     *pterm.Logger
	loc        *time.Location
	NoBots     bool
}

func NewIngestor(
	repo repositories.RequestLogRepository,
	cls *classifier.Classifier,
	geo *geoip.Service,
	logger *pterm.Logger,
	loc *time.Location,
) *Ingestor {
	if loc == nil {
		loc = time.Local
	}
	return &Ingestor{
		repo:       repo,
		classifier: cls,
		geo:        geo,
		logger:     logger,
		loc:        loc,
	}
}

// classify resolves the request context into the shared log fields. GeoIP
// failures degrade to "no geo info"; they never block the row.
func (i *Ingestor) classify(ctx context.Context, rc RequestContext, created time.Time) (models.RequestLogFields, error) {
	fields := models.RequestLogFields{
		Created:    created.In(i.loc),
		PathInfo:   rc.PathInfo,
		RemoteAddr: rc.RemoteAddr,
		UserAgent:  rc.UserAgent,
		Referrer:   rc.Referer,
	}

	classification, ipCategory := i.classifier.Classify(rc.UserAgent, rc.Referer, rc.RemoteAddr)
	fields.RemoteAddrCategory = string(ipCategory)
	fields.IsBot = ipCategory.IsBot()

	if classification == nil {
		metrics.ClassificationMisses.Inc()
	} else {
		fields.IsBot = classification.IsBot
		fields.ReferrerName = classification.ReferrerName
		fields.ReferrerCategory = classification.ReferrerCategory

		ua, err := i.repo.GetOrCreateUserAgent(ctx, &models.UserAgent{
			Raw:            rc.UserAgent,
			Type:           string(classification.Type),
			Name:           classification.Name,
			IsBot:          classification.IsBot,
			DeviceName:     classification.DeviceName,
			DeviceCategory: string(classification.DeviceCategory),
		})
		if err != nil {
			return fields, err
		}
		fields.UserAgentID = &ua.ID
	}

	if i.geo != nil {
		geo, err := i.geo.GetOrCreate(ctx, rc.RemoteAddr)
		if err != nil {
			metrics.GeoIPLookups.WithLabelValues("error").Inc()
			i.logger.Warn("GeoIP lookup failed, storing without geo info",
				i.logger.Args("ip", rc.RemoteAddr, "error", err))
		} else if geo != nil {
			metrics.GeoIPLookups.WithLabelValues("hit").Inc()
			fields.GeoIPAddr = &geo.IP
		} else {
			metrics.GeoIPLookups.WithLabelValues("miss").Inc()
		}
	}

	return fields, nil
}

func (i *Ingestor) suppress(kind string, fields models.RequestLogFields) bool {
	if i.NoBots && fields.IsBot {
		metrics.LogsIngested.WithLabelValues(kind, "suppressed").Inc()
		i.logger.Debug("Suppressed bot request log",
			i.logger.Args("kind", kind, "user_agent", fields.UserAgent))
		return true
	}
	return false
}

// RecordPodcastHit stores a landing-page hit for a podcast.
func (i *Ingestor) RecordPodcastHit(ctx context.Context, rc RequestContext, podcastSlug string) error {
	fields, err := i.classify(ctx, rc, time.Now())
	if err != nil {
		return err
	}
	if i.suppress("podcast", fields) {
		return nil
	}
	log := &models.PodcastRequestLog{RequestLogFields: fields, PodcastSlug: podcastSlug}
	if err := i.repo.CreatePodcastLog(ctx, log); err != nil {
		return err
	}
	metrics.LogsIngested.WithLabelValues("podcast", "created").Inc()
	return nil
}

// RecordRssHit stores an RSS feed fetch for a podcast.
func (i *Ingestor) RecordRssHit(ctx context.Context, rc RequestContext, podcastSlug string) error {
	fields, err := i.classify(ctx, rc, time.Now())
	if err != nil {
		return err
	}
	if i.suppress("rss", fields) {
		return nil
	}
	log := &models.PodcastRssRequestLog{RequestLogFields: fields, PodcastSlug: podcastSlug}
	if err := i.repo.CreateRssLog(ctx, log); err != nil {
		return err
	}
	metrics.LogsIngested.WithLabelValues("rss", "created").Inc()
	return nil
}

// RecordContentHit stores a page hit against an episode or post.
func (i *Ingestor) RecordContentHit(ctx context.Context, rc RequestContext, content models.ContentRef) error {
	fields, err := i.classify(ctx, rc, time.Now())
	if err != nil {
		return err
	}
	if i.suppress("content", fields) {
		return nil
	}
	log := &models.PodcastContentRequestLog{
		RequestLogFields: fields,
		ContentID:        content.ID,
		ContentKind:      content.Kind,
	}
	if err := i.repo.CreateContentLog(ctx, log); err != nil {
		return err
	}
	metrics.LogsIngested.WithLabelValues("content", "created").Inc()
	return nil
}
