package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pterm/pterm"
)

func TestHTTPProvider_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/203.0.113.5/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"city":"Stockholm","region":"Stockholm","country":"SE","org":"AS1234 Example"}`))
		case "/203.0.113.6/json":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	provider := NewHTTPProvider(server.URL, "", logger)

	if !provider.Enabled() {
		t.Fatal("Expected provider with base URL to be enabled")
	}

	result, err := provider.Lookup(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result == nil || result.City != "Stockholm" || result.Country != "SE" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestHTTPProvider_Lookup_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	provider := NewHTTPProvider(server.URL, "", logger)

	result, err := provider.Lookup(context.Background(), "203.0.113.6")
	if err != nil {
		t.Fatalf("404 must not be an error, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result for 404, got %+v", result)
	}
}

func TestHTTPProvider_Lookup_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	provider := NewHTTPProvider(server.URL, "", logger)

	if _, err := provider.Lookup(context.Background(), "203.0.113.7"); err == nil {
		t.Fatal("Expected error for server failure")
	}
}

func TestHTTPProvider_Disabled(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	provider := NewHTTPProvider("", "", logger)
	if provider.Enabled() {
		t.Error("Provider without base URL must be disabled")
	}
}

func TestMMDBProvider_MissingDatabases(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	provider := NewMMDBProvider("/nonexistent/city.mmdb", "/nonexistent/asn.mmdb", logger)
	if provider.Enabled() {
		t.Error("Provider with no loadable databases must be disabled")
	}
}
