// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package config loads and validates the Trailmark configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Strava   StravaConfig   `koanf:"strava"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Quota    QuotaConfig    `koanf:"quota"`
	Upload   UploadConfig   `koanf:"upload"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig controls the BadgerDB document store.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// StravaConfig holds partner API credentials and client tuning.
type StravaConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	BaseURL      string        `koanf:"base_url"`
	TokenURL     string        `koanf:"token_url"`
	Timeout      time.Duration `koanf:"timeout"`
	PerPage      int           `koanf:"per_page"`

	// RequestsPerSecond caps outbound calls to the partner API.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// CatalogConfig points at the read-only route catalog.
type CatalogConfig struct {
	URL         string        `koanf:"url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxGPXBytes int64         `koanf:"max_gpx_bytes"`
}

// QuotaConfig sets per-user usage ceilings.
type QuotaConfig struct {
	CheckIns          int `koanf:"check_ins"`
	QRSheet           int `koanf:"qr_sheet"`
	StravaSync        int `koanf:"strava_sync"`
	SyncsPerDay       int `koanf:"syncs_per_day"`
	MaxUploadsPerDay  int `koanf:"max_uploads_per_day"`
	MaxUploadsPerYear int `koanf:"max_uploads_per_year"`
}

// UploadConfig bounds manual GPX uploads.
type UploadConfig struct {
	MaxFileBytes      int64 `koanf:"max_file_bytes"`
	MaxAdminFileBytes int64 `koanf:"max_admin_file_bytes"`
}

// CacheConfig tunes the in-memory cache.
type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int           `koanf:"max_entries"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would break startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if c.Strava.PerPage < 1 || c.Strava.PerPage > 100 {
		return fmt.Errorf("strava.per_page %d out of range (1-100)", c.Strava.PerPage)
	}
	if c.Quota.SyncsPerDay < 1 {
		return fmt.Errorf("quota.syncs_per_day must be at least 1")
	}
	if c.Quota.MaxUploadsPerDay < 1 {
		return fmt.Errorf("quota.max_uploads_per_day must be at least 1")
	}
	if c.Quota.MaxUploadsPerYear < c.Quota.MaxUploadsPerDay {
		return fmt.Errorf("quota.max_uploads_per_year must not be below quota.max_uploads_per_day")
	}
	if c.Upload.MaxFileBytes <= 0 || c.Upload.MaxAdminFileBytes < c.Upload.MaxFileBytes {
		return fmt.Errorf("upload size limits misconfigured")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}
