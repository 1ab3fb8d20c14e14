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
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"gorm.io/gorm"

	"github.com/Eboreg/spodcat-backend/internal/charts"
)

// playFractionExpr scales one audio response into a fraction of a full
// play. Episodes without a known audio file length contribute zero.
const playFractionExpr = `CASE WHEN episodes.audio_file_length > 0
	THEN CAST(episode_audio_request_logs.response_body_size AS REAL) / episodes.audio_file_length
	ELSE 0.0 END`

// playSecondsExpr converts one audio response into rounded seconds of
// estimated listening time.
const playSecondsExpr = `CASE WHEN episodes.audio_file_length > 0
	THEN ROUND(CAST(episode_audio_request_logs.response_body_size AS REAL)
		/ episodes.audio_file_length * episodes.duration_seconds)
	ELSE 0.0 END`

// StatsRepository aggregates request logs into play estimates and chart
// rows. Timestamps are stored with their zone offset, so substr() over the
// text column yields the local calendar date the row was created on.
type StatsRepository interface {
	GetPodcastPlayCount(ctx context.Context, podcastSlug string) (float64, error)
	GetEpisodePlayCount(ctx context.Context, episodeID uuid.UUID) (float64, error)
	GetPodcastPlayTime(ctx context.Context, podcastSlug string) (time.Duration, error)
	GetEpisodePlayTime(ctx context.Context, episodeID uuid.UUID) (time.Duration, error)

	// GetEpisodePlayChartRows returns daily play sums per episode. Days
	// where an episode's sum is zero are omitted; the chart builder fills
	// the gaps.
	GetEpisodePlayChartRows(ctx context.Context, podcastSlug string, start, end time.Time) ([]charts.DailyRow, error)

	// GetPodcastPlayChartRows returns daily play sums per podcast,
	// including zero-sum days that have log rows.
	GetPodcastPlayChartRows(ctx context.Context, start, end time.Time) ([]charts.DailyRow, error)

	GetRssUniqueIPChartRows(ctx context.Context, start, end time.Time) ([]charts.MonthlyRow, error)
	GetAudioUniqueIPChartRows(ctx context.Context, start, end time.Time) ([]charts.MonthlyRow, error)
}

type statsRepository struct {
	db     *gorm.DB
	logger *pterm.Logger
	loc    *time.Location
}

func NewStatsRepository(db *gorm.DB, logger *pterm.Logger, loc *time.Location) StatsRepository {
	if loc == nil {
		loc = time.Local
	}
	return &statsRepository{db: db, logger: logger, loc: loc}
}

func (r *statsRepository) GetPodcastPlayCount(ctx context.Context, podcastSlug string) (float64, error) {
	var count float64
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episodes.podcast_slug = ?", podcastSlug).
		Select("COALESCE(SUM(" + playFractionExpr + "), 0.0)").
		Scan(&count).Error
	return count, err
}

func (r *statsRepository) GetEpisodePlayCount(ctx context.Context, episodeID uuid.UUID) (float64, error) {
	var count float64
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episode_audio_request_logs.episode_id = ?", episodeID).
		Select("COALESCE(SUM(" + playFractionExpr + "), 0.0)").
		Scan(&count).Error
	return count, err
}

func (r *statsRepository) GetPodcastPlayTime(ctx context.Context, podcastSlug string) (time.Duration, error) {
	var seconds float64
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episodes.podcast_slug = ?", podcastSlug).
		Select("COALESCE(SUM(" + playSecondsExpr + "), 0.0)").
		Scan(&seconds).Error
	return time.Duration(seconds) * time.Second, err
}

func (r *statsRepository) GetEpisodePlayTime(ctx context.Context, episodeID uuid.UUID) (time.Duration, error) {
	var seconds float64
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episode_audio_request_logs.episode_id = ?", episodeID).
		Select("COALESCE(SUM(" + playSecondsExpr + "), 0.0)").
		Scan(&seconds).Error
	return time.Duration(seconds) * time.Second, err
}

type dailyScanRow struct {
	Slug string
	Name string
	Date string
	Y    float64
}

func (r *statsRepository) GetEpisodePlayChartRows(ctx context.Context, podcastSlug string, start, end time.Time) ([]charts.DailyRow, error) {
	var scanned []dailyScanRow
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episodes.podcast_slug = ?", podcastSlug).
		Where("episode_audio_request_logs.created >= ? AND episode_audio_request_logs.created <= ?", start, end).
		Select(`episodes.slug AS slug, episodes.name AS name,
			substr(episode_audio_request_logs.created, 1, 10) AS date,
			SUM(` + playFractionExpr + `) AS y`).
		Group("episodes.slug, episodes.name, date").
		Having("y != 0.0").
		Order("slug, date").
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}
	return r.toDailyRows(scanned)
}

func (r *statsRepository) GetPodcastPlayChartRows(ctx context.Context, start, end time.Time) ([]charts.DailyRow, error) {
	var scanned []dailyScanRow
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Joins("JOIN podcasts ON podcasts.slug = episodes.podcast_slug").
		Where("episode_audio_request_logs.created >= ? AND episode_audio_request_logs.created <= ?", start, end).
		Select(`podcasts.slug AS slug, podcasts.name AS name,
			substr(episode_audio_request_logs.created, 1, 10) AS date,
			SUM(` + playFractionExpr + `) AS y`).
		Group("podcasts.slug, podcasts.name, date").
		Order("slug, date").
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}
	return r.toDailyRows(scanned)
}

type monthlyScanRow struct {
	Slug  string
	Name  string
	Year  int
	Month int
	Y     float64
}

func (r *statsRepository) GetRssUniqueIPChartRows(ctx context.Context, start, end time.Time) ([]charts.MonthlyRow, error) {
	var scanned []monthlyScanRow
	err := r.db.WithContext(ctx).
		Table("podcast_rss_request_logs").
		Joins("JOIN podcasts ON podcasts.slug = podcast_rss_request_logs.podcast_slug").
		Where("podcast_rss_request_logs.created >= ? AND podcast_rss_request_logs.created <= ?", start, end).
		Select(`podcasts.slug AS slug, podcasts.name AS name,
			CAST(substr(podcast_rss_request_logs.created, 1, 4) AS INTEGER) AS year,
			CAST(substr(podcast_rss_request_logs.created, 6, 2) AS INTEGER) AS month,
			COUNT(DISTINCT podcast_rss_request_logs.remote_addr) AS y`).
		Group("podcasts.slug, podcasts.name, year, month").
		Order("slug, year, month").
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}
	return toMonthlyRows(scanned), nil
}

func (r *statsRepository) GetAudioUniqueIPChartRows(ctx context.Context, start, end time.Time) ([]charts.MonthlyRow, error) {
	var scanned []monthlyScanRow
	err := r.db.WithContext(ctx).
		Table("episode_audio_request_logs").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Joins("JOIN podcasts ON podcasts.slug = episodes.podcast_slug").
		Where("episode_audio_request_logs.created >= ? AND episode_audio_request_logs.created <= ?", start, end).
		Select(`podcasts.slug AS slug, podcasts.name AS name,
			CAST(substr(episode_audio_request_logs.created, 1, 4) AS INTEGER) AS year,
			CAST(substr(episode_audio_request_logs.created, 6, 2) AS INTEGER) AS month,
			COUNT(DISTINCT episode_audio_request_logs.remote_addr) AS y`).
		Group("podcasts.slug, podcasts.name, year, month").
		Order("slug, year, month").
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}
	return toMonthlyRows(scanned), nil
}

func (r *statsRepository) toDailyRows(scanned []dailyScanRow) ([]charts.DailyRow, error) {
	rows := make([]charts.DailyRow, 0, len(scanned))
	for _, row := range scanned {
		date, err := time.ParseInLocation("2006-01-02", row.Date, r.loc)
		if err != nil {
			r.logger.Warn("Skipping chart row with unparseable date",
				r.logger.Args("date", row.Date, "slug", row.Slug))
			continue
		}
		rows = append(rows, charts.DailyRow{Slug: row.Slug, Name: row.Name, Date: date, Y: row.Y})
	}
	return rows, nil
}

func toMonthlyRows(scanned []monthlyScanRow) []charts.MonthlyRow {
	rows := make([]charts.MonthlyRow, 0, len(scanned))
	for _, row := range scanned {
		rows = append(rows, charts.MonthlyRow{
			Slug:  row.Slug,
			Name:  row.Name,
			Year:  row.Year,
			Month: time.Month(row.Month),
			Y:     row.Y,
		})
	}
	return rows
}
