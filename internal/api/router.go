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
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/api/handlers"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/ingestion"
)

// Deps collects the constructed services the router wires into handlers.
type Deps struct {
	StatsRepo  repositories.StatsRepository
	LogRepo    repositories.RequestLogRepository
	Ingestor   *ingestion.Ingestor
	Replayer   *ingestion.Replayer
	Backfiller *ingestion.Backfiller
	Logger     *pterm.Logger
	Location   *time.Location
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	chartHandler := handlers.NewChartHandler(deps.StatsRepo, deps.Logger, deps.Location)
	playHandler := handlers.NewPlayHandler(deps.StatsRepo, deps.LogRepo, deps.Logger)
	logHandler := handlers.NewLogHandler(deps.Ingestor, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.Replayer, deps.Backfiller, deps.Logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chartGroup := router.Group("/charts")
	{
		chartGroup.GET("/podcast-plays", chartHandler.GetPodcastPlays)
		chartGroup.GET("/episode-plays", chartHandler.GetEpisodePlays)
		chartGroup.GET("/unique-ips", chartHandler.GetUniqueIPs)
	}

	router.GET("/podcasts/:slug/plays", playHandler.GetPodcastPlays)
	router.GET("/podcasts/:slug/audio-logs", playHandler.GetAudioLogs)
	router.GET("/episodes/:id/plays", playHandler.GetEpisodePlays)

	logGroup := router.Group("/logs")
	{
		logGroup.POST("/podcast/:slug", logHandler.RecordPodcastHit)
		logGroup.POST("/rss/:slug", logHandler.RecordRssHit)
		logGroup.POST("/content/:id", logHandler.RecordContentHit)
	}

	adminGroup := router.Group("/admin")
	{
		adminGroup.POST("/replay-audio-logs/:slug", adminHandler.ReplayAudioLogs)
		adminGroup.POST("/fill-remote-hosts", adminHandler.FillRemoteHosts)
		adminGroup.POST("/fill-geoips", adminHandler.FillGeoIPs)
	}

	return router
}
