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

// Package config loads the service configuration from an optional YAML file
// layered under SPODCAT_* environment overrides. Nested keys use a double
// underscore in the environment: SPODCAT_DATABASE__PATH -> database.path.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SPODCAT_"

type DatabaseConfig struct {
	Path         string `koanf:"path"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
}

type ServerConfig struct {
	Address string `koanf:"address"`
}

type RefDataConfig struct {
	// Dir holds the signature datasets (bots.json, apps.json, ...) and the
	// crawler IP range lists (googlebot.ips / googlebot.json, ...).
	Dir string `koanf:"dir"`
}

type GeoIPConfig struct {
	// Mode is "http" for an ipinfo-style endpoint, "mmdb" for local
	// MaxMind databases, or "" to disable lookups.
	Mode       string `koanf:"mode"`
	BaseURL    string `koanf:"base_url"`
	Token      string `koanf:"token"`
	CityDBPath string `koanf:"city_db_path"`
	ASNDBPath  string `koanf:"asn_db_path"`
}

type LogQueryConfig struct {
	BaseURL     string `koanf:"base_url"`
	Token       string `koanf:"token"`
	Environment string `koanf:"environment"`
}

type IngestionConfig struct {
	NoBots bool `koanf:"no_bots"`
}

type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	RefData   RefDataConfig   `koanf:"refdata"`
	GeoIP     GeoIPConfig     `koanf:"geoip"`
	LogQuery  LogQueryConfig  `koanf:"logquery"`
	Ingestion IngestionConfig `koanf:"ingestion"`

	// Timezone is the IANA zone charts and stored timestamps use.
	Timezone string `koanf:"timezone"`
	LogLevel string `koanf:"log_level"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "spodcat.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Server:    ServerConfig{Address: ":8080"},
		RefData:   RefDataConfig{Dir: "datasets"},
		LogQuery:  LogQueryConfig{Environment: "prod"},
		Timezone:  "UTC",
		LogLevel:  "info",
		GeoIP:     GeoIPConfig{Mode: ""},
		Ingestion: IngestionConfig{NoBots: false},
	}
}

// Load reads the config file at path (skipped when empty or missing) and
// applies environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.GeoIP.Mode {
	case "", "http", "mmdb":
	default:
		return fmt.Errorf("geoip.mode must be \"http\", \"mmdb\" or empty, got %q", c.GeoIP.Mode)
	}
	return nil
}

// Location resolves the configured timezone. Only call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
