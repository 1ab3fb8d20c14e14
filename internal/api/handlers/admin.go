package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/ingestion"
)

// AdminHandler exposes the operator actions: audio-log replay and the
// backfill jobs. These run synchronously; callers are expected to be
// internal tooling, not end users.
type AdminHandler struct {
	replayer   *ingestion.Replayer
	backfiller *ingestion.Backfiller
	logger     *pterm.Logger
}

func NewAdminHandler(replayer *ingestion.Replayer, backfiller *ingestion.Backfiller, logger *pterm.Logger) *AdminHandler {
	return &AdminHandler{replayer: replayer, backfiller: backfiller, logger: logger}
}

// ReplayAudioLogs handles POST /admin/replay-audio-logs/:slug.
func (h *AdminHandler) ReplayAudioLogs(c *gin.Context) {
	opts := ingestion.ReplayOptions{
		PodcastSlug: c.Param("slug"),
		Environment: c.Query("environment"),
		Complete:    c.Query("complete") != "",
		NoBots:      c.Query("no_bots") != "",
	}

	report, err := h.replayer.ReplayAudioLogs(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("Replay failed",
			h.logger.Args("podcast", opts.PodcastSlug, "error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// FillRemoteHosts handles POST /admin/fill-remote-hosts.
func (h *AdminHandler) FillRemoteHosts(c *gin.Context) {
	filled, err := h.backfiller.FillRemoteHosts(c.Request.Context())
	if err != nil {
		h.logger.Error("Remote host backfill failed", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": filled})
}

// FillGeoIPs handles POST /admin/fill-geoips.
func (h *AdminHandler) FillGeoIPs(c *gin.Context) {
	filled, err := h.backfiller.FillGeoIPs(c.Request.Context())
	if err != nil {
		h.logger.Error("Geo backfill failed", h.logger.Args("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": filled})
}
