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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/database/models"
	"github.com/Eboreg/spodcat-backend/internal/ingestion"
)

// hitRequest is the payload the web layer forwards for a live hit. Missing
// fields fall back to the request's own headers and address.
type hitRequest struct {
	UserAgent  string `json:"user_agent"`
	Referer    string `json:"referer"`
	RemoteAddr string `json:"remote_addr"`
	PathInfo   string `json:"path_info"`
}

// LogHandler records live request hits forwarded by the web layer.
type LogHandler struct {
	ingestor *ingestion.Ingestor
	logger   *pterm.Logger
}

func NewLogHandler(ingestor *ingestion.Ingestor, logger *pterm.Logger) *LogHandler {
	return &LogHandler{ingestor: ingestor, logger: logger}
}

func (h *LogHandler) requestContext(c *gin.Context) ingestion.RequestContext {
	var body hitRequest
	// An empty body is fine; everything can come from the request itself
	_ = c.ShouldBindJSON(&body)

	rc := ingestion.RequestContext{
		UserAgent:  body.UserAgent,
		Referer:    body.Referer,
		RemoteAddr: body.RemoteAddr,
		PathInfo:   body.PathInfo,
	}
	if rc.UserAgent == "" {
		rc.UserAgent = c.Request.UserAgent()
	}
	if rc.Referer == "" {
		rc.Referer = c.Request.Referer()
	}
	if rc.RemoteAddr == "" {
		rc.RemoteAddr = c.ClientIP()
	}
	if rc.PathInfo == "" {
		rc.PathInfo = c.Request.URL.Path
	}
	return rc
}

// RecordPodcastHit handles POST /logs/podcast/:slug.
func (h *LogHandler) RecordPodcastHit(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.ingestor.RecordPodcastHit(c.Request.Context(), h.requestContext(c), slug); err != nil {
		h.logger.Error("Failed to record podcast hit", h.logger.Args("podcast", slug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record hit"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordRssHit handles POST /logs/rss/:slug.
func (h *LogHandler) RecordRssHit(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.ingestor.RecordRssHit(c.Request.Context(), h.requestContext(c), slug); err != nil {
		h.logger.Error("Failed to record rss hit", h.logger.Args("podcast", slug, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record hit"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordContentHit handles POST /logs/content/:id. The kind parameter
// distinguishes episode pages from post pages.
func (h *LogHandler) RecordContentHit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid content id"})
		return
	}

	kind := models.ContentKind(c.DefaultQuery("kind", string(models.ContentEpisode)))
	if kind != models.ContentEpisode && kind != models.ContentPost {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be episode or post"})
		return
	}

	ref := models.ContentRef{Kind: kind, ID: id}
	if err := h.ingestor.RecordContentHit(c.Request.Context(), h.requestContext(c), ref); err != nil {
		h.logger.Error("Failed to record content hit", h.logger.Args("content", id, "error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record hit"})
		return
	}
	c.Status(http.StatusNoContent)
}
