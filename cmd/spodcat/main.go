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
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"gorm.io/gorm"

	"github.com/Eboreg/spodcat-backend/internal/api"
	"github.com/Eboreg/spodcat-backend/internal/banner"
	"github.com/Eboreg/spodcat-backend/internal/classifier"
	"github.com/Eboreg/spodcat-backend/internal/config"
	"github.com/Eboreg/spodcat-backend/internal/database"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/geoip"
	"github.com/Eboreg/spodcat-backend/internal/ingestion"
	"github.com/Eboreg/spodcat-backend/internal/logquery"
	"github.com/Eboreg/spodcat-backend/internal/refdata"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: spodcat [flags] <command> [args]

Commands:
  serve                        run the analytics HTTP service
  replay-audio-logs [slugs]    replay audio logs from the external query service
  fill-remote-hosts            reverse-DNS backfill for stored log rows
  fill-geoips                  GeoIP backfill for stored log rows

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	environment := flag.String("environment", "", "override log query environment")
	complete := flag.Bool("complete", false, "replay from the beginning instead of incrementally")
	noBots := flag.Bool("no-bots", false, "skip bot-classified rows during replay")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	db, err := database.Connect(database.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, logger)
	if err != nil {
		logger.Error("Failed to open database", logger.Args("error", err))
		os.Exit(1)
	}

	app := newApp(cfg, db, logger)

	switch flag.Arg(0) {
	case "serve", "":
		app.serve()
	case "replay-audio-logs":
		opts := ingestion.ReplayOptions{
			Environment: *environment,
			Complete:    *complete,
			NoBots:      *noBots,
		}
		app.replayAudioLogs(flag.Args()[1:], opts)
	case "fill-remote-hosts":
		app.fillRemoteHosts()
	case "fill-geoips":
		app.fillGeoIPs()
	default:
		usage()
		os.Exit(2)
	}
}

func newLogger(level string) *pterm.Logger {
	logLevel := pterm.LogLevelInfo
	switch level {
	case "trace":
		logLevel = pterm.LogLevelTrace
	case "debug":
		logLevel = pterm.LogLevelDebug
	case "warn":
		logLevel = pterm.LogLevelWarn
	case "error":
		logLevel = pterm.LogLevelError
	}
	return pterm.DefaultLogger.WithLevel(logLevel)
}

type app struct {
	cfg        *config.Config
	db         *gorm.DB
	logger     *pterm.Logger
	logRepo    repositories.RequestLogRepository
	statsRepo  repositories.StatsRepository
	ingestor   *ingestion.Ingestor
	replayer   *ingestion.Replayer
	backfiller *ingestion.Backfiller
}

func newApp(cfg *config.Config, db *gorm.DB, logger *pterm.Logger) *app {
	loc := cfg.Location()

	store := refdata.NewStore(cfg.RefData.Dir, logger)
	ipcat := classifier.NewIPCategorizer(cfg.RefData.Dir, logger)
	cls := classifier.New(store, ipcat, logger)

	var provider geoip.Provider
	switch cfg.GeoIP.Mode {
	case "http":
		provider = geoip.NewHTTPProvider(cfg.GeoIP.BaseURL, cfg.GeoIP.Token, logger)
	case "mmdb":
		provider = geoip.NewMMDBProvider(cfg.GeoIP.CityDBPath, cfg.GeoIP.ASNDBPath, logger)
	}
	geoService := geoip.NewService(db, provider, logger)

	logRepo := repositories.NewRequestLogRepository(db, logger)
	statsRepo := repositories.NewStatsRepository(db, logger, loc)

	ingestor := ingestion.NewIngestor(logRepo, cls, geoService, logger, loc)
	ingestor.NoBots = cfg.Ingestion.NoBots

	queryClient := logquery.NewHTTPClient(
		cfg.LogQuery.BaseURL, cfg.LogQuery.Token, cfg.LogQuery.Environment, logger)
	replayer := ingestion.NewReplayer(queryClient, logRepo, cls, geoService, logger, loc)
	backfiller := ingestion.NewBackfiller(logRepo, geoService, logger)

	return &app{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		logRepo:    logRepo,
		statsRepo:  statsRepo,
		ingestor:   ingestor,
		replayer:   replayer,
		backfiller: backfiller,
	}
}

func (a *app) serve() {
	banner.Print()

	router := api.NewRouter(api.Deps{
		StatsRepo:  a.statsRepo,
		LogRepo:    a.logRepo,
		Ingestor:   a.ingestor,
		Replayer:   a.replayer,
		Backfiller: a.backfiller,
		Logger:     a.logger,
		Location:   a.cfg.Location(),
	})

	server := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		a.logger.Info("Listening", a.logger.Args("address", a.cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Server failed", a.logger.Args("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error("Shutdown failed", a.logger.Args("error", err))
	}
}

func (a *app) replayAudioLogs(slugs []string, opts ingestion.ReplayOptions) {
	ctx := context.Background()

	if len(slugs) == 0 {
		if err := a.db.Table("podcasts").Order("slug").Pluck("slug", &slugs).Error; err != nil {
			a.logger.Error("Failed to list podcasts", a.logger.Args("error", err))
			os.Exit(1)
		}
	}

	exitCode := 0
	for _, slug := range slugs {
		a.logger.Info("Getting new audio request logs", a.logger.Args("podcast", slug))

		opts.PodcastSlug = slug
		report, err := a.replayer.ReplayAudioLogs(ctx, opts)
		if err != nil {
			a.logger.Error("Replay failed", a.logger.Args("podcast", slug, "error", err))
			exitCode = 1
			continue
		}

		a.logger.Info("Replay done", a.logger.Args(
			"podcast", slug,
			"created", report.Created,
			"updated", report.Updated,
			"skipped", report.Skipped,
			"errors", len(report.Errors),
		))
		for _, msg := range report.Errors {
			a.logger.Warn("Row error", a.logger.Args("podcast", slug, "error", msg))
		}
	}
	os.Exit(exitCode)
}

func (a *app) fillRemoteHosts() {
	if _, err := a.backfiller.FillRemoteHosts(context.Background()); err != nil {
		a.logger.Error("Remote host backfill failed", a.logger.Args("error", err))
		os.Exit(1)
	}
}

func (a *app) fillGeoIPs() {
	if _, err := a.backfiller.FillGeoIPs(context.Background()); err != nil {
		a.logger.Error("Geo backfill failed", a.logger.Args("error", err))
		os.Exit(1)
	}
}
