package logquery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pterm/pterm"
)

func testLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
}

func TestGetAudioRequestLogs(t *testing.T) {
	var gotRequest queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Unexpected auth header: %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotRequest); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rows": [
			{"TimeGenerated": "2025-03-01T12:00:00Z", "StatusCode": 206, "DurationMs": 42.5,
			 "CallerIpAddress": "203.0.113.5:51234", "UserAgentHeader": "AppleCoreMedia/1.0",
			 "ReferrerHeader": "", "ObjectKey": "prod/testcast/episodes/ep1.mp3",
			 "ResponseBodySize": 5000000, "Uri": "https://storage.example.com/ep1.mp3"}
		]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret", "prod", testLogger())
	rows, err := client.GetAudioRequestLogs(context.Background(), Query{PodcastSlug: "testcast"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if gotRequest.ObjectKeyContains != "prod/testcast/episodes" {
		t.Errorf("Unexpected object key filter: %q", gotRequest.ObjectKeyContains)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.CallerIPAddress != "203.0.113.5:51234" {
		t.Errorf("Unexpected caller address: %q", row.CallerIPAddress)
	}
	if row.ResponseBodySize != 5000000 || row.StatusCode != 206 {
		t.Errorf("Unexpected row payload: %+v", row)
	}
	if !row.TimeGenerated.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected timestamp: %v", row.TimeGenerated)
	}
}

func TestGetAudioRequestLogs_EnvironmentOverride(t *testing.T) {
	var gotRequest queryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotRequest)
		_, _ = w.Write([]byte(`{"rows": []}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "prod", testLogger())
	_, err := client.GetAudioRequestLogs(context.Background(), Query{
		PodcastSlug: "testcast",
		Environment: "staging",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotRequest.ObjectKeyContains != "staging/testcast/episodes" {
		t.Errorf("Explicit environment must win, got %q", gotRequest.ObjectKeyContains)
	}
}

func TestGetAudioRequestLogs_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "", "prod", testLogger())
	_, err := client.GetAudioRequestLogs(context.Background(), Query{PodcastSlug: "testcast"})
	if err == nil {
		t.Fatal("Expected error for failing service")
	}

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected *QueryError, got %T", err)
	}
	if queryErr.PodcastSlug != "testcast" {
		t.Errorf("Error must carry the podcast slug, got %q", queryErr.PodcastSlug)
	}
}

func TestFilterRows_ExclusiveBounds(t *testing.T) {
	boundary := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []Row{
		{TimeGenerated: boundary.Add(-time.Second)},
		{TimeGenerated: boundary},
		{TimeGenerated: boundary.Add(time.Second)},
	}

	// Exclusive lower bound drops the boundary row even when the service
	// returned it
	filtered := filterRows(append([]Row{}, rows...), Query{From: &boundary, FromInclusive: false})
	if len(filtered) != 1 || !filtered[0].TimeGenerated.After(boundary) {
		t.Errorf("Exclusive from must keep only later rows, got %+v", filtered)
	}

	filtered = filterRows(append([]Row{}, rows...), Query{From: &boundary, FromInclusive: true})
	if len(filtered) != 3 {
		t.Errorf("Inclusive from must keep all rows, got %d", len(filtered))
	}

	filtered = filterRows(append([]Row{}, rows...), Query{To: &boundary, ToInclusive: false})
	if len(filtered) != 1 || !filtered[0].TimeGenerated.Before(boundary) {
		t.Errorf("Exclusive to must keep only earlier rows, got %+v", filtered)
	}
}
