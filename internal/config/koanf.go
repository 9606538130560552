// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

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

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/chq-calendar/config.yaml",
	"/etc/chq-calendar/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
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

// envMappings maps flat environment variable names (lowercased) to
// koanf config paths. Variables absent from the table are ignored so
// unrelated process environment never leaks into the config.
var envMappings = map[string]string{
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",

	"upstream_base_url":             "upstream.base_url",
	"upstream_api_path":             "upstream.api_path",
	"upstream_per_page":             "upstream.per_page",
	"upstream_timeout":              "upstream.timeout",
	"upstream_max_retries":          "upstream.max_retries",
	"upstream_page_delay":           "upstream.page_delay",
	"upstream_chunk_delay":          "upstream.chunk_delay",
	"upstream_chunk_threshold_days": "upstream.chunk_threshold_days",

	"ics_enabled":    "ics.enabled",
	"ics_feed_url":   "ics.feed_url",
	"ics_timeout":    "ics.timeout",
	"ics_uid_prefix": "ics.uid_prefix",

	"store_path": "store.path",

	"cache_ttl":              "cache.ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	"sync_hourly_window_days":         "sync.hourly_window_days",
	"sync_incremental_lookback_days":  "sync.incremental_lookback_days",
	"sync_incremental_lookahead_days": "sync.incremental_lookahead_days",
	"sync_season_year":                "sync.season_year",
	"sync_timezone":                   "sync.timezone",

	"scheduler_enabled":       "scheduler.enabled",
	"scheduler_daily_spec":    "scheduler.daily_spec",
	"scheduler_hourly_spec":   "scheduler.hourly_spec",
	"scheduler_startup_delay": "scheduler.startup_delay",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf config
// paths, e.g. UPSTREAM_BASE_URL -> upstream.base_url. Unknown
// variables map to "" and are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// validateTimezone checks that the configured timezone resolves to a
// real tzdata location.
func (c *Config) validateTimezone() error {
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("SYNC_TIMEZONE %q is not a valid timezone: %w", c.Sync.Timezone, err)
	}
	return nil
}
