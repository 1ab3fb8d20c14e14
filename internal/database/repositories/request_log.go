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
	"errors"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Eboreg/spodcat-backend/internal/database/models"
)

// logTables lists every request-log table sharing the remote_addr /
// remote_host / geo_ip_addr columns, for the backfill jobs that operate
// across all of them.
var logTables = []string{
	"podcast_request_logs",
	"podcast_rss_request_logs",
	"podcast_content_request_logs",
	"episode_audio_request_logs",
}

// RequestLogRepository persists classified request logs and the deduplicated
// user-agent rows they reference.
type RequestLogRepository interface {
	CreatePodcastLog(ctx context.Context, log *models.PodcastRequestLog) error
	CreateRssLog(ctx context.Context, log *models.PodcastRssRequestLog) error
	CreateContentLog(ctx context.Context, log *models.PodcastContentRequestLog) error

	// UpsertAudioLog inserts an audio log row or, when a row with the same
	// (remote_addr, created) natural key already exists, updates it in
	// place. Returns whether a new row was created.
	UpsertAudioLog(ctx context.Context, log *models.EpisodeAudioRequestLog) (bool, error)

	// LatestAudioLogTime returns the created timestamp of the newest audio
	// log for a podcast, or nil when the podcast has none.
	LatestAudioLogTime(ctx context.Context, podcastSlug string) (*time.Time, error)

	GetOrCreateUserAgent(ctx context.Context, ua *models.UserAgent) (*models.UserAgent, error)

	// AddrsWithoutHost returns distinct remote addresses that still lack a
	// resolved remote host, across all log tables.
	AddrsWithoutHost(ctx context.Context) ([]string, error)
	SetRemoteHost(ctx context.Context, addr, host string) error

	// AddrsWithoutGeo returns distinct remote addresses with no geo
	// reference yet, across all log tables.
	AddrsWithoutGeo(ctx context.Context) ([]string, error)
	SetGeoIPAddr(ctx context.Context, addr, geoIPAddr string) error

	// FindEpisodeByAudioFile resolves an episode of a podcast whose audio
	// file name the given object key ends with.
	FindEpisodeByAudioFile(ctx context.Context, podcastSlug, objectKey string) (*models.Episode, error)

	// GetRecentAudioLogs returns a podcast's newest audio logs with their
	// episodes preloaded, newest first.
	GetRecentAudioLogs(ctx context.Context, podcastSlug string, limit int) ([]models.EpisodeAudioRequestLog, error)
}

type requestLogRepository struct {
	db     *gorm.DB
	logger *pterm.Logger
}

func NewRequestLogRepository(db *gorm.DB, logger *pterm.Logger) RequestLogRepository {
	return &requestLogRepository{db: db, logger: logger}
}

func (r *requestLogRepository) CreatePodcastLog(ctx context.Context, log *models.PodcastRequestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *requestLogRepository) CreateRssLog(ctx context.Context, log *models.PodcastRssRequestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *requestLogRepository) CreateContentLog(ctx context.Context, log *models.PodcastContentRequestLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *requestLogRepository) UpsertAudioLog(ctx context.Context, log *models.EpisodeAudioRequestLog) (bool, error) {
	var existing models.EpisodeAudioRequestLog
	err := r.db.WithContext(ctx).
		Where("remote_addr = ? AND created = ?", log.RemoteAddr, log.Created).
		First(&existing).Error

	if err == nil {
		log.ID = existing.ID
		updates := map[string]interface{}{
			"path_info":            log.PathInfo,
			"remote_addr_category": log.RemoteAddrCategory,
			"user_agent":           log.UserAgent,
			"user_agent_id":        log.UserAgentID,
			"geo_ip_addr":          log.GeoIPAddr,
			"referrer":             log.Referrer,
			"referrer_category":    log.ReferrerCategory,
			"referrer_name":        log.ReferrerName,
			"is_bot":               log.IsBot,
			"episode_id":           log.EpisodeID,
			"duration_ms":          log.DurationMs,
			"response_body_size":   log.ResponseBodySize,
			"status_code":          log.StatusCode,
		}
		return false, r.db.WithContext(ctx).
			Model(&models.EpisodeAudioRequestLog{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	// A concurrent writer may still beat us to the natural key; let the
	// conflict resolve as an update instead of failing the batch.
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "created"}, {Name: "remote_addr"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"path_info", "remote_addr_category", "user_agent", "user_agent_id",
				"geo_ip_addr", "referrer", "referrer_category", "referrer_name",
				"is_bot", "episode_id", "duration_ms", "response_body_size", "status_code",
			}),
		}).
		Create(log).Error
	return err == nil, err
}

func (r *requestLogRepository) LatestAudioLogTime(ctx context.Context, podcastSlug string) (*time.Time, error) {
	var log models.EpisodeAudioRequestLog
	err := r.db.WithContext(ctx).
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episodes.podcast_slug = ?", podcastSlug).
		Order("episode_audio_request_logs.created DESC").
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &log.Created, nil
}

func (r *requestLogRepository) GetOrCreateUserAgent(ctx context.Context, ua *models.UserAgent) (*models.UserAgent, error) {
	var existing models.UserAgent
	err := r.db.WithContext(ctx).Where("raw = ?", ua.Raw).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ua).Error
	if err != nil {
		return nil, err
	}

	var stored models.UserAgent
	if err := r.db.WithContext(ctx).Where("raw = ?", ua.Raw).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *requestLogRepository) AddrsWithoutHost(ctx context.Context) ([]string, error) {
	return r.distinctAddrs(ctx, "remote_host = '' AND remote_addr != ''")
}

func (r *requestLogRepository) SetRemoteHost(ctx context.Context, addr, host string) error {
	for _, table := range logTables {
		err := r.db.WithContext(ctx).
			Table(table).
			Where("remote_addr = ? AND remote_host = ''", addr).
			Update("remote_host", host).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *requestLogRepository) AddrsWithoutGeo(ctx context.Context) ([]string, error) {
	return r.distinctAddrs(ctx, "geo_ip_addr IS NULL AND remote_addr != ''")
}

func (r *requestLogRepository) SetGeoIPAddr(ctx context.Context, addr, geoIPAddr string) error {
	for _, table := range logTables {
		err := r.db.WithContext(ctx).
			Table(table).
			Where("remote_addr = ? AND geo_ip_addr IS NULL", addr).
			Update("geo_ip_addr", geoIPAddr).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *requestLogRepository) distinctAddrs(ctx context.Context, condition string) ([]string, error) {
	seen := make(map[string]bool)
	var addrs []string

	for _, table := range logTables {
		var batch []string
		err := r.db.WithContext(ctx).
			Table(table).
			Where(condition).
			Distinct("remote_addr").
			Pluck("remote_addr", &batch).Error
		if err != nil {
			return nil, err
		}
		for _, addr := range batch {
			if !seen[addr] {
				seen[addr] = true
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs, nil
}

func (r *requestLogRepository) FindEpisodeByAudioFile(ctx context.Context, podcastSlug, objectKey string) (*models.Episode, error) {
	var episodes []models.Episode
	err := r.db.WithContext(ctx).
		Where("podcast_slug = ? AND audio_file != ''", podcastSlug).
		Find(&episodes).Error
	if err != nil {
		return nil, err
	}

	for i := range episodes {
		file := episodes[i].AudioFile
		if len(objectKey) >= len(file) && objectKey[len(objectKey)-len(file):] == file {
			return &episodes[i], nil
		}
	}
	return nil, nil
}

func (r *requestLogRepository) GetRecentAudioLogs(ctx context.Context, podcastSlug string, limit int) ([]models.EpisodeAudioRequestLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []models.EpisodeAudioRequestLog
	err := r.db.WithContext(ctx).
		Preload("Episode").
		Joins("JOIN episodes ON episodes.id = episode_audio_request_logs.episode_id").
		Where("episodes.podcast_slug = ?", podcastSlug).
		Order("episode_audio_request_logs.created DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
