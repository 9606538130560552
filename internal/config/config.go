// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

// Package config defines the service configuration and loads it from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables, with environment taking precedence.
package config

import (
	"time"

	"github.com/bbernstein/chq-calendar-sub000/internal/validation"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	ICS       ICSConfig       `koanf:"ics"`
	Store     StoreConfig     `koanf:"store"`
	Cache     CacheConfig     `koanf:"cache"`
	Sync      SyncConfig      `koanf:"sync"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// UpstreamConfig holds settings for the institution's events REST API.
type UpstreamConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	APIPath string `koanf:"api_path"`

	// PerPage is the page size requested from the upstream API.
	PerPage int `koanf:"per_page" validate:"min=1,max=500"`

	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds retry attempts on rate-limited responses.
	MaxRetries int `koanf:"max_retries" validate:"min=0,max=10"`

	// PageDelay is the pause between successive page requests.
	PageDelay time.Duration `koanf:"page_delay"`

	// ChunkDelay is the pause between weekly chunk fetches.
	ChunkDelay time.Duration `koanf:"chunk_delay"`

	// ChunkThresholdDays is the range length above which a fetch is
	// split into weekly chunks.
	ChunkThresholdDays int `koanf:"chunk_threshold_days" validate:"min=1"`
}

// ICSConfig holds settings for the published ICS feed.
type ICSConfig struct {
	Enabled bool          `koanf:"enabled"`
	FeedURL string        `koanf:"feed_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"`

	// UIDPrefix namespaces canonical IDs minted from ICS entries.
	UIDPrefix string `koanf:"uid_prefix"`
}

// StoreConfig holds event store settings.
type StoreConfig struct {
	// Path is the badger database directory. Empty selects the
	// in-memory store, used in tests.
	Path string `koanf:"path"`
}

// CacheConfig holds upstream response cache settings.
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// SyncConfig holds sync engine settings.
type SyncConfig struct {
	// HourlyWindowDays is the lookahead window of the hourly sync.
	HourlyWindowDays int `koanf:"hourly_window_days" validate:"min=1"`

	// IncrementalLookbackDays and IncrementalLookaheadDays bound the
	// incremental sync range around the current day.
	IncrementalLookbackDays  int `koanf:"incremental_lookback_days" validate:"min=0"`
	IncrementalLookaheadDays int `koanf:"incremental_lookahead_days" validate:"min=1"`

	// SeasonYear overrides the season year for full syncs. Zero means
	// the current year.
	SeasonYear int `koanf:"season_year"`

	// Timezone is the institution's local timezone, used for season
	// math when an event carries no usable zone of its own.
	Timezone string `koanf:"timezone" validate:"required"`
}

// SchedulerConfig holds scheduled sync settings.
type SchedulerConfig struct {
	Enabled bool `koanf:"enabled"`

	// DailySpec and HourlySpec are cron expressions in the
	// institution's local timezone.
	DailySpec  string `koanf:"daily_spec" validate:"required"`
	HourlySpec string `koanf:"hourly_spec" validate:"required"`

	// StartupDelay postpones the first hourly schedule after boot so
	// the initial full sync can finish undisturbed.
	StartupDelay time.Duration `koanf:"startup_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults
// are loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:            "https://www.chq.org",
			APIPath:            "/wp-json/tribe/events/v1/events",
			PerPage:            100,
			Timeout:            30 * time.Second,
			MaxRetries:         3,
			PageDelay:          100 * time.Millisecond,
			ChunkDelay:         200 * time.Millisecond,
			ChunkThresholdDays: 14,
		},
		ICS: ICSConfig{
			Enabled:   false,
			FeedURL:   "",
			Timeout:   30 * time.Second,
			UIDPrefix: "ics",
		},
		Store: StoreConfig{
			Path: "/data/events",
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Sync: SyncConfig{
			HourlyWindowDays:         7,
			IncrementalLookbackDays:  7,
			IncrementalLookaheadDays: 30,
			SeasonYear:               0,
			Timezone:                 "America/New_York",
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			DailySpec:    "0 2 * * *",
			HourlySpec:   "0 * * * *",
			StartupDelay: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	return c.validateTimezone()
}
