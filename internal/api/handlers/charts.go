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
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/charts"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
)

// defaultChartDays is the range used when no start/end is given: the last
// 30 days through today.
const defaultChartDays = 30

// ChartHandler serves the daily play and monthly unique-IP chart series.
type ChartHandler struct {
	statsRepo repositories.StatsRepository
	logger    *pterm.Logger
	loc       *time.Location
}

func NewChartHandler(statsRepo repositories.StatsRepository, logger *pterm.Logger, loc *time.Location) *ChartHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ChartHandler{statsRepo: statsRepo, logger: logger, loc: loc}
}

// parseRange reads start/end ISO date parameters. The range is inclusive;
// end dates are extended to the end of their day so same-day rows count.
func (h *ChartHandler) parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().In(h.loc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999_000_000, h.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc).
		AddDate(0, 0, -defaultChartDays)

	if raw := c.Query("start"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, want YYYY-MM-DD"})
			return start, end, false
		}
		start = parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, want YYYY-MM-DD"})
			return start, end, false
		}
		end = parsed.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end date before start date"})
		return start, end, false
	}
	return start, end, true
}

// GetPodcastPlays returns one daily dataset per podcast.
func (h *ChartHandler) GetPodcastPlays(c *gin.Context) {
	start, end, ok := h.parseRange(c)
	if !ok {
		return
	}

	rows, err := h.statsRepo.GetPodcastPlayChartRows(c.Request.Context(), start, end)
	if err != nil {
		h.logger.Error("Podcast play chart query failed", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build chart"})
		return
	}

	c.JSON(http.StatusOK, charts.BuildDailySeries(rows, start, end, h.loc))
}

// GetEpisodePlays returns one daily dataset per episode of a podcast.
func (h *ChartHandler) GetEpisodePlays(c *gin.Context) {
	podcastSlug := c.Query("podcast")
	if podcastSlug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "podcast parameter is required"})
		return
	}

	start, end, ok := h.parseRange(c)
	if !ok {
		return
	}

	rows, err := h.statsRepo.GetEpisodePlayChartRows(c.Request.Context(), podcastSlug, start, end)
	if err != nil {
		h.logger.Error("Episode play chart query failed",
			h.logger.Args("podcast", podcastSlug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build chart"})
		return
	}

	c.JSON(http.StatusOK, charts.BuildDailySeries(rows, start, end, h.loc))
}

// GetUniqueIPs returns monthly unique-address datasets, from RSS fetches or
// audio requests depending on the source parameter.
func (h *ChartHandler) GetUniqueIPs(c *gin.Context) {
	start, end, ok := h.parseRange(c)
	if !ok {
		return
	}

	var rows []charts.MonthlyRow
	var err error
	switch source := c.DefaultQuery("source", "rss"); source {
	case "rss":
		rows, err = h.statsRepo.GetRssUniqueIPChartRows(c.Request.Context(), start, end)
	case "audio":
		rows, err = h.statsRepo.GetAudioUniqueIPChartRows(c.Request.Context(), start, end)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must be rss or audio"})
		return
	}
	if err != nil {
		h.logger.Error("Unique IP chart query failed", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build chart"})
		return
	}

	c.JSON(http.StatusOK, charts.BuildMonthlySeries(rows, start, end, h.loc))
}
