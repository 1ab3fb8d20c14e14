package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	json "github.com/goccy/go-json"

	"github.com/Eboreg/spodcat-backend/internal/classifier"
	"github.com/Eboreg/spodcat-backend/internal/database"
	"github.com/Eboreg/spodcat-backend/internal/database/models"
	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/ingestion"
	"github.com/Eboreg/spodcat-backend/internal/logquery"
	"github.com/Eboreg/spodcat-backend/internal/refdata"
)

type fixture struct {
	db     *gorm.DB
	router http.Handler
	client *fakeLogQueryClient
}

type fakeLogQueryClient struct {
	rows []logquery.Row
}

func (c *fakeLogQueryClient) GetAudioRequestLogs(ctx context.Context, q logquery.Query) ([]logquery.Row, error) {
	return c.rows, nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	dir := t.TempDir()
	writeFixture := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
	}
	writeFixture("bots.json", `{"entries": [{"name": "Examplebot", "pattern": "Examplebot"}]}`)
	writeFixture("apps.json", `{"entries": [{"name": "Apple Podcasts", "pattern": "AppleCoreMedia"}]}`)

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	store := refdata.NewStore(dir, logger)
	ipcat := classifier.NewIPCategorizer(dir, logger)
	cls := classifier.New(store, ipcat, logger)

	logRepo := repositories.NewRequestLogRepository(db, logger)
	statsRepo := repositories.NewStatsRepository(db, logger, time.UTC)
	ingestor := ingestion.NewIngestor(logRepo, cls, nil, logger, time.UTC)
	client := &fakeLogQueryClient{}
	replayer := ingestion.NewReplayer(client, logRepo, cls, nil, logger, time.UTC)
	backfiller := ingestion.NewBackfiller(logRepo, nil, logger)

	router := NewRouter(Deps{
		StatsRepo:  statsRepo,
		LogRepo:    logRepo,
		Ingestor:   ingestor,
		Replayer:   replayer,
		Backfiller: backfiller,
		Logger:     logger,
		Location:   time.UTC,
	})

	return &fixture{db: db, router: router, client: client}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedPodcastWithEpisode(t *testing.T) uuid.UUID {
	t.Helper()
	if err := f.db.Create(&models.Podcast{Slug: "testcast", Name: "Testcast"}).Error; err != nil {
		t.Fatalf("Failed to seed podcast: %v", err)
	}
	episode := &models.Episode{
		ID:              uuid.New(),
		PodcastSlug:     "testcast",
		Slug:            "ep1",
		Name:            "Episode 1",
		AudioFile:       "ep1.mp3",
		AudioFileLength: 10_000_000,
		DurationSeconds: 600,
	}
	if err := f.db.Create(episode).Error; err != nil {
		t.Fatalf("Failed to seed episode: %v", err)
	}
	return episode.ID
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("Expected Prometheus process metrics in response")
	}
}

func TestRecordPodcastHitAndChart(t *testing.T) {
	f := newFixture(t)
	episodeID := f.seedPodcastWithEpisode(t)

	rec := f.do(t, http.MethodPost, "/logs/podcast/testcast",
		`{"user_agent": "AppleCoreMedia/1.0", "remote_addr": "203.0.113.5", "path_info": "/testcast"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	f.db.Model(&models.PodcastRequestLog{}).Count(&count)
	if count != 1 {
		t.Fatalf("Expected 1 stored log, got %d", count)
	}

	// Store an audio log directly, then read back via plays and charts
	audioLog := &models.EpisodeAudioRequestLog{
		Created:          time.Now().UTC(),
		RemoteAddr:       "203.0.113.5",
		EpisodeID:        episodeID,
		ResponseBodySize: 5_000_000,
		StatusCode:       206,
	}
	if err := f.db.Create(audioLog).Error; err != nil {
		t.Fatalf("Failed to seed audio log: %v", err)
	}

	rec = f.do(t, http.MethodGet, "/podcasts/testcast/plays", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var plays struct {
		PlayCount       float64 `json:"play_count"`
		PlayTimeSeconds int64   `json:"play_time_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &plays); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if plays.PlayCount != 0.5 || plays.PlayTimeSeconds != 300 {
		t.Errorf("Expected 0.5 plays / 300s, got %+v", plays)
	}

	rec = f.do(t, http.MethodGet, "/charts/podcast-plays", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var chart struct {
		Datasets []struct {
			Label string `json:"label"`
			Data  []struct {
				X int64   `json:"x"`
				Y float64 `json:"y"`
			} `json:"data"`
		} `json:"datasets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatalf("Failed to decode chart: %v", err)
	}
	if len(chart.Datasets) != 1 || chart.Datasets[0].Label != "Testcast" {
		t.Fatalf("Unexpected datasets: %+v", chart.Datasets)
	}
	// Default range: 31 daily points (30 days back through today)
	if len(chart.Datasets[0].Data) != 31 {
		t.Errorf("Expected 31 daily points, got %d", len(chart.Datasets[0].Data))
	}
	var sum float64
	for _, p := range chart.Datasets[0].Data {
		sum += p.Y
	}
	if sum != 0.5 {
		t.Errorf("Expected total 0.5 plays in chart, got %f", sum)
	}
}

func TestAudioLogListing(t *testing.T) {
	f := newFixture(t)
	episodeID := f.seedPodcastWithEpisode(t)

	audioLog := &models.EpisodeAudioRequestLog{
		Created:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		RemoteAddr:       "203.0.113.5",
		EpisodeID:        episodeID,
		ResponseBodySize: 2_500_000,
		StatusCode:       206,
	}
	if err := f.db.Create(audioLog).Error; err != nil {
		t.Fatalf("Failed to seed audio log: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/podcasts/testcast/audio-logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Logs []struct {
			EpisodeSlug    string  `json:"episode_slug"`
			PercentFetched float64 `json:"percent_fetched"`
			PlaySeconds    float64 `json:"play_seconds"`
		} `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Logs) != 1 {
		t.Fatalf("Expected 1 log, got %d", len(body.Logs))
	}
	if body.Logs[0].EpisodeSlug != "ep1" {
		t.Errorf("Expected episode ep1, got %q", body.Logs[0].EpisodeSlug)
	}
	if body.Logs[0].PercentFetched != 25 {
		t.Errorf("Expected 25 percent fetched, got %f", body.Logs[0].PercentFetched)
	}
	if body.Logs[0].PlaySeconds != 150 {
		t.Errorf("Expected 150 play seconds, got %f", body.Logs[0].PlaySeconds)
	}

	rec = f.do(t, http.MethodGet, "/podcasts/testcast/audio-logs?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestChartBadDates(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/charts/podcast-plays?start=notadate", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad start, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/charts/podcast-plays?start=2025-03-10&end=2025-03-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestEpisodeChartRequiresPodcast(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/charts/episode-plays", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without podcast parameter, got %d", rec.Code)
	}
}

func TestUniqueIPsBadSource(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/charts/unique-ips?source=carrier_pigeon", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown source, got %d", rec.Code)
	}
}

func TestRecordContentHitInvalidID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/logs/content/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid id, got %d", rec.Code)
	}
}

func TestReplayEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedPodcastWithEpisode(t)

	f.client.rows = []logquery.Row{
		{
			TimeGenerated:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			StatusCode:       206,
			CallerIPAddress:  "203.0.113.5:4711",
			UserAgentHeader:  "AppleCoreMedia/1.0",
			ObjectKey:        "prod/testcast/episodes/ep1.mp3",
			ResponseBodySize: 5_000_000,
		},
	}

	rec := f.do(t, http.MethodPost, "/admin/replay-audio-logs/testcast", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report ingestion.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Created != 1 || report.Skipped != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
}
