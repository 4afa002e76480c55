// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trailmark/config.yaml",
	"/etc/trailmark/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "TRAILMARK_CONFIG"

// envPrefix is stripped from environment variables before mapping them to
// config paths.
const envPrefix = "TRAILMARK_"

// defaultConfig returns the built-in defaults. These are applied first,
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8042,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path: "/data/trailmark",
		},
		Strava: StravaConfig{
			BaseURL:           "https://www.strava.com/api/v3",
			TokenURL:          "https://www.strava.com/oauth/token",
			Timeout:           15 * time.Second,
			PerPage:           100,
			RequestsPerSecond: 2,
		},
		Catalog: CatalogConfig{
			Timeout:     10 * time.Second,
			MaxGPXBytes: 1 << 20, // 1MB
		},
		Quota: QuotaConfig{
			CheckIns:          50,
			QRSheet:           10,
			StravaSync:        16,
			SyncsPerDay:       4,
			MaxUploadsPerDay:  2,
			MaxUploadsPerYear: 8,
		},
		Upload: UploadConfig{
			MaxFileBytes:      30 * 1024,
			MaxAdminFileBytes: 400 * 1024,
		},
		Cache: CacheConfig{
			TTL:        30 * time.Minute,
			MaxEntries: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from layered sources: defaults, an
// optional YAML file, then TRAILMARK_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings resolves variables whose leaf names contain underscores and
// so cannot be derived mechanically from the section_key convention.
var envMappings = map[string]string{
	"server_shutdown_timeout":    "server.shutdown_timeout",
	"server_cors_origins":        "server.cors_origins",
	"server_rate_limit_reqs":     "server.rate_limit_reqs",
	"server_rate_limit_window":   "server.rate_limit_window",
	"database_in_memory":         "database.in_memory",
	"strava_client_id":           "strava.client_id",
	"strava_client_secret":       "strava.client_secret",
	"strava_base_url":            "strava.base_url",
	"strava_token_url":           "strava.token_url",
	"strava_per_page":            "strava.per_page",
	"strava_requests_per_second": "strava.requests_per_second",
	"catalog_max_gpx_bytes":      "catalog.max_gpx_bytes",
	"quota_check_ins":            "quota.check_ins",
	"quota_qr_sheet":             "quota.qr_sheet",
	"quota_strava_sync":          "quota.strava_sync",
	"quota_syncs_per_day":        "quota.syncs_per_day",
	"quota_max_uploads_per_day":  "quota.max_uploads_per_day",
	"quota_max_uploads_per_year": "quota.max_uploads_per_year",
	"upload_max_file_bytes":      "upload.max_file_bytes",
	"upload_max_admin_file_bytes": "upload.max_admin_file_bytes",
	"cache_max_entries":          "cache.max_entries",
}

// envTransform maps TRAILMARK_SECTION_KEY to section.key.
//
//	TRAILMARK_SERVER_PORT       -> server.port
//	TRAILMARK_STRAVA_CLIENT_ID  -> strava.client_id
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as
// plain strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
