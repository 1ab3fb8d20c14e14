package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/playback"
)

// PlayHandler serves aggregate play totals and audio-log listings.
type PlayHandler struct {
	statsRepo repositories.StatsRepository
	logRepo   repositories.RequestLogRepository
	logger    *pterm.Logger
}

func NewPlayHandler(statsRepo repositories.StatsRepository, logRepo repositories.RequestLogRepository, logger *pterm.Logger) *PlayHandler {
	return &PlayHandler{statsRepo: statsRepo, logRepo: logRepo, logger: logger}
}

// GetPodcastPlays handles GET /podcasts/:slug/plays.
func (h *PlayHandler) GetPodcastPlays(c *gin.Context) {
	slug := c.Param("slug")

	count, err := h.statsRepo.GetPodcastPlayCount(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("Play count query failed", h.logger.Args("podcast", slug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute plays"})
		return
	}
	playTime, err := h.statsRepo.GetPodcastPlayTime(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("Play time query failed", h.logger.Args("podcast", slug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute plays"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"podcast":           slug,
		"play_count":        count,
		"play_time_seconds": int64(playTime.Seconds()),
	})
}

// GetEpisodePlays handles GET /episodes/:id/plays.
func (h *PlayHandler) GetEpisodePlays(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid episode id"})
		return
	}

	count, err := h.statsRepo.GetEpisodePlayCount(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Play count query failed", h.logger.Args("episode", id, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute plays"})
		return
	}
	playTime, err := h.statsRepo.GetEpisodePlayTime(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Play time query failed", h.logger.Args("episode", id, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute plays"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"episode":           id,
		"play_count":        count,
		"play_time_seconds": int64(playTime.Seconds()),
	})
}

// audioLogEntry is one row of the audio-log listing, with the per-response
// play estimate spelled out.
type audioLogEntry struct {
	Created          time.Time `json:"created"`
	RemoteAddr       string    `json:"remote_addr"`
	EpisodeSlug      string    `json:"episode_slug"`
	EpisodeName      string    `json:"episode_name"`
	StatusCode       int       `json:"status_code"`
	ResponseBodySize int64     `json:"response_body_size"`
	PercentFetched   float64   `json:"percent_fetched"`
	PlaySeconds      float64   `json:"play_seconds"`
	IsBot            bool      `json:"is_bot"`
}

// GetAudioLogs handles GET /podcasts/:slug/audio-logs.
func (h *PlayHandler) GetAudioLogs(c *gin.Context) {
	slug := c.Param("slug")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = parsed
	}

	logs, err := h.logRepo.GetRecentAudioLogs(c.Request.Context(), slug, limit)
	if err != nil {
		h.logger.Error("Audio log listing failed", h.logger.Args("podcast", slug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audio logs"})
		return
	}

	entries := make([]audioLogEntry, 0, len(logs))
	for _, log := range logs {
		fraction := playback.Fraction(log.ResponseBodySize, log.Episode.AudioFileLength)
		entries = append(entries, audioLogEntry{
			Created:          log.Created,
			RemoteAddr:       log.RemoteAddr,
			EpisodeSlug:      log.Episode.Slug,
			EpisodeName:      log.Episode.Name,
			StatusCode:       log.StatusCode,
			ResponseBodySize: log.ResponseBodySize,
			PercentFetched:   playback.PercentFetched(log.ResponseBodySize, log.Episode.AudioFileLength),
			PlaySeconds:      playback.RoundedSeconds(fraction, log.Episode.DurationSeconds),
			IsBot:            log.IsBot,
		})
	}

	c.JSON(http.StatusOK, gin.H{"podcast": slug, "logs": entries})
}
