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

// Package logquery talks to the external access-log query service that
// holds the storage layer's blob-request logs. Replay jobs pull historic
// audio-request rows from here and feed them into ingestion.
package logquery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pterm/pterm"
)

// Row is one audio-request entry as returned by the query service.
// CallerIPAddress may carry an ip:port suffix; callers strip it before
// classification and storage.
type Row struct {
	TimeGenerated    time.Time `json:"TimeGenerated"`
	StatusCode       int       `json:"StatusCode"`
	DurationMs       float64   `json:"DurationMs"`
	CallerIPAddress  string    `json:"CallerIpAddress"`
	UserAgentHeader  string    `json:"UserAgentHeader"`
	ReferrerHeader   string    `json:"ReferrerHeader"`
	ObjectKey        string    `json:"ObjectKey"`
	ResponseBodySize int64     `json:"ResponseBodySize"`
	URI              string    `json:"Uri"`
}

// Query selects the rows to fetch. A nil From means "from the beginning".
// The service's boundary operators have proven unreliable for identical
// timestamps, so exclusive bounds are re-checked row-side after fetching.
type Query struct {
	PodcastSlug   string
	Environment   string
	From          *time.Time
	FromInclusive bool
	To            *time.Time
	ToInclusive   bool
}

// Client fetches audio-request log rows for a podcast.
type Client interface {
	GetAudioRequestLogs(ctx context.Context, q Query) ([]Row, error)
}

// QueryError wraps a failure against the query service with the podcast it
// concerned, so batch reports can attribute it.
type QueryError struct {
	PodcastSlug string
	Err         error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("audio log query for %q: %v", e.PodcastSlug, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// HTTPClient implements Client against a JSON-over-HTTP query endpoint:
// POST {base}/query with the filter document, {"rows":[...]} back.
type HTTPClient struct {
	baseURL     string
	token       string
	environment string
	client      *http.Client
	logger      *pterm.Logger
}

func NewHTTPClient(baseURL, token, environment string, logger *pterm.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		token:       token,
		environment: environment,
		client:      &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
	}
}

type queryRequest struct {
	ObjectKeyContains string  `json:"objectKeyContains"`
	From              *string `json:"from,omitempty"`
	FromInclusive     bool    `json:"fromInclusive"`
	To                *string `json:"to,omitempty"`
	ToInclusive       bool    `json:"toInclusive"`
}

type queryResponse struct {
	Rows []Row `json:"rows"`
}

func (c *HTTPClient) GetAudioRequestLogs(ctx context.Context, q Query) ([]Row, error) {
	environment := q.Environment
	if environment == "" {
		environment = c.environment
	}

	body := queryRequest{
		ObjectKeyContains: fmt.Sprintf("%s/%s/episodes", environment, q.PodcastSlug),
		FromInclusive:     q.FromInclusive,
		ToInclusive:       q.ToInclusive,
	}
	if q.From != nil {
		s := q.From.UTC().Format(time.RFC3339Nano)
		body.From = &s
	}
	if q.To != nil {
		s := q.To.UTC().Format(time.RFC3339Nano)
		body.To = &s
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &QueryError{PodcastSlug: q.PodcastSlug, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, &QueryError{PodcastSlug: q.PodcastSlug, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &QueryError{PodcastSlug: q.PodcastSlug, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &QueryError{
			PodcastSlug: q.PodcastSlug,
			Err:         fmt.Errorf("query service returned status %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QueryError{PodcastSlug: q.PodcastSlug, Err: err}
	}

	var decoded queryResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &QueryError{PodcastSlug: q.PodcastSlug, Err: err}
	}

	rows := filterRows(decoded.Rows, q)
	c.logger.Debug("Fetched audio request logs",
		c.logger.Args("podcast", q.PodcastSlug, "rows", len(rows)))
	return rows, nil
}

// filterRows re-applies exclusive time bounds on the returned rows; the
// service treats boundary timestamps inconsistently.
func filterRows(rows []Row, q Query) []Row {
	filtered := rows[:0]
	for _, row := range rows {
		if q.From != nil && !q.FromInclusive && !row.TimeGenerated.After(*q.From) {
			continue
		}
		if q.To != nil && !q.ToInclusive && !row.TimeGenerated.Before(*q.To) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}
