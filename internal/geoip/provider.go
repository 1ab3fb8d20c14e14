package geoip

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oschwald/geoip2-golang"
	"github.com/pterm/pterm"
)

// Result is one GeoIP lookup outcome. A nil *Result with a nil error means
// the provider had no data for the address.
type Result struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Org     string `json:"org"`
}

// Provider resolves an IP address to geographical data. Implementations
// must treat "address not found" as (nil, nil), not an error.
type Provider interface {
	Lookup(ctx context.Context, ip string) (*Result, error)
	Enabled() bool
}

// HTTPProvider queries an ipinfo-style JSON endpoint
// (GET {base}/{ip}/json?token=...).
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *pterm.Logger
}

func NewHTTPProvider(baseURL, token string, logger *pterm.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (p *HTTPProvider) Enabled() bool {
	return p.baseURL != ""
}

func (p *HTTPProvider) Lookup(ctx context.Context, ip string) (*Result, error) {
	url := fmt.Sprintf("%s/%s/json", p.baseURL, ip)
	if p.token != "" {
		url += "?token=" + p.token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip provider returned status %d for %s", resp.StatusCode, ip)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding geoip response for %s: %w", ip, err)
	}

	return &result, nil
}

// MMDBProvider resolves addresses from local MaxMind databases instead of a
// network service. Missing database files disable the corresponding part of
// the lookup rather than failing construction.
type MMDBProvider struct {
	cityDB *geoip2.Reader
	asnDB  *geoip2.Reader
	logger *pterm.Logger
}

func NewMMDBProvider(cityDBPath, asnDBPath string, logger *pterm.Logger) *MMDBProvider {
	provider := &MMDBProvider{logger: logger}

	if cityDBPath != "" {
		cityDB, err := geoip2.Open(cityDBPath)
		if err != nil {
			logger.Warn("GeoIP City database not available",
				logger.Args("path", cityDBPath, "error", err))
		} else {
			provider.cityDB = cityDB
			logger.Info("Loaded GeoIP City database", logger.Args("path", cityDBPath))
		}
	}

	if asnDBPath != "" {
		asnDB, err := geoip2.Open(asnDBPath)
		if err != nil {
			logger.Warn("GeoIP ASN database not available",
				logger.Args("path", asnDBPath, "error", err))
		} else {
			provider.asnDB = asnDB
			logger.Info("Loaded GeoIP ASN database", logger.Args("path", asnDBPath))
		}
	}

	return provider
}

func (p *MMDBProvider) Enabled() bool {
	return p.cityDB != nil || p.asnDB != nil
}

func (p *MMDBProvider) Lookup(ctx context.Context, ip string) (*Result, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid IP: %s", ip)
	}

	result := &Result{}
	found := false

	if p.cityDB != nil {
		record, err := p.cityDB.City(parsed)
		if err == nil && record.Country.IsoCode != "" {
			result.Country = record.Country.IsoCode
			result.City = record.City.Names["en"]
			if len(record.Subdivisions) > 0 {
				result.Region = record.Subdivisions[0].Names["en"]
			}
			found = true
		}
	}

	if p.asnDB != nil {
		record, err := p.asnDB.ASN(parsed)
		if err == nil && record.AutonomousSystemOrganization != "" {
			result.Org = record.AutonomousSystemOrganization
			found = true
		}
	}

	if !found {
		return nil, nil
	}
	return result, nil
}

func (p *MMDBProvider) Close() {
	if p.cityDB != nil {
		p.cityDB.Close()
	}
	if p.asnDB != nil {
		p.asnDB.Close()
	}
}
