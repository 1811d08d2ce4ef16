package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-tracker
  az: us-east-1a
api:
  base_url: https://sandbox.polygon.io
  api_key: test-key
  timeout: 45s
  chunk_days: 90
database:
  backend: postgres
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
universe:
  exchange: XNYS
  liquidity_sessions: 5
  min_dollar_volume: 25000000
  min_price: "4.50"
poller:
  interval: 15m
archive:
  enabled: true
  format: parquet
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-tracker" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-tracker")
	}
	if cfg.API.BaseURL != "https://sandbox.polygon.io" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://sandbox.polygon.io")
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("API.Timeout = %v, want 45s", cfg.API.Timeout)
	}
	if cfg.API.ChunkDays != 90 {
		t.Errorf("API.ChunkDays = %d, want 90", cfg.API.ChunkDays)
	}
	if cfg.Database.Backend != "postgres" {
		t.Errorf("Database.Backend = %q, want %q", cfg.Database.Backend, "postgres")
	}
	if cfg.Database.Postgres.Host != "localhost" {
		t.Errorf("Database.Postgres.Host = %q, want %q", cfg.Database.Postgres.Host, "localhost")
	}
	if cfg.Universe.Exchange != "XNYS" {
		t.Errorf("Universe.Exchange = %q, want %q", cfg.Universe.Exchange, "XNYS")
	}
	if want := decimal.NewFromInt(25_000_000); !cfg.Universe.MinDollarVolume.Equal(want) {
		t.Errorf("Universe.MinDollarVolume = %s, want %s", cfg.Universe.MinDollarVolume, want)
	}
	if want := decimal.RequireFromString("4.50"); !cfg.Universe.MinPrice.Equal(want) {
		t.Errorf("Universe.MinPrice = %s, want %s", cfg.Universe.MinPrice, want)
	}
	if cfg.Poller.Interval != 15*time.Minute {
		t.Errorf("Poller.Interval = %v, want 15m", cfg.Poller.Interval)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Format != "parquet" {
		t.Errorf("Archive = %+v, want enabled parquet", cfg.Archive)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")

	yaml := `
instance:
  id: test-tracker
api:
  api_key: ${TEST_API_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.APIKey != "secret123" {
		t.Errorf("API.APIKey = %q, want %q", cfg.API.APIKey, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-tracker
api:
  api_key: test-key
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.Calendar != DefaultCalendar {
		t.Errorf("API.Calendar = %q, want default %q", cfg.API.Calendar, DefaultCalendar)
	}
	if cfg.Database.Backend != DefaultDBBackend {
		t.Errorf("Database.Backend = %q, want default %q", cfg.Database.Backend, DefaultDBBackend)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Universe.Exchange != DefaultExchange {
		t.Errorf("Universe.Exchange = %q, want default %q", cfg.Universe.Exchange, DefaultExchange)
	}
	if !cfg.Universe.MinDollarVolume.Equal(DefaultMinDollarVolume) {
		t.Errorf("Universe.MinDollarVolume = %s, want default %s", cfg.Universe.MinDollarVolume, DefaultMinDollarVolume)
	}
	if !cfg.Universe.MinPrice.Equal(DefaultMinPrice) {
		t.Errorf("Universe.MinPrice = %s, want default %s", cfg.Universe.MinPrice, DefaultMinPrice)
	}
	if cfg.History.Years != DefaultHistoryYears {
		t.Errorf("History.Years = %d, want default %d", cfg.History.Years, DefaultHistoryYears)
	}
	if cfg.Fetch.Workers != DefaultFetchWorkers {
		t.Errorf("Fetch.Workers = %d, want default %d", cfg.Fetch.Workers, DefaultFetchWorkers)
	}
	if cfg.Watermarks.YearStrictness != DefaultYearStrictness {
		t.Errorf("Watermarks.YearStrictness = %q, want default %q", cfg.Watermarks.YearStrictness, DefaultYearStrictness)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if cfg.Archive.Format != DefaultArchiveFormat {
		t.Errorf("Archive.Format = %q, want default %q", cfg.Archive.Format, DefaultArchiveFormat)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func validConfig() TrackerConfig {
	return TrackerConfig{
		Instance:   InstanceConfig{ID: "test"},
		API:        APIConfig{APIKey: "key", ChunkDays: 365, Calendar: "UTC"},
		Database:   DatabaseConfig{Backend: "memory"},
		Universe:   UniverseConfig{LiquiditySessions: 10},
		History:    HistoryConfig{Years: 20},
		Fetch:      FetchConfig{Workers: 8, BatchSize: 100},
		Watermarks: WatermarksConfig{YearStrictness: "degrade"},
		Poller:     PollerConfig{Interval: 30 * time.Minute, Timeout: time.Minute},
		Metrics:    MetricsConfig{Port: 9090},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TrackerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *TrackerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *TrackerConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing api key",
			mutate:  func(c *TrackerConfig) { c.API.APIKey = "" },
			wantErr: "api.api_key is required",
		},
		{
			name:    "unknown database backend",
			mutate:  func(c *TrackerConfig) { c.Database.Backend = "mysql" },
			wantErr: `database.backend must be memory or postgres, got "mysql"`,
		},
		{
			name: "missing postgres host",
			mutate: func(c *TrackerConfig) {
				c.Database.Backend = "postgres"
				c.Database.Postgres = DBConfig{Name: "db", User: "user", Password: "pass", MaxConns: 10}
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *TrackerConfig) {
				c.Database.Backend = "postgres"
				c.Database.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "zero liquidity sessions",
			mutate:  func(c *TrackerConfig) { c.Universe.LiquiditySessions = 0 },
			wantErr: "universe.liquidity_sessions must be >= 1",
		},
		{
			name:    "negative min price",
			mutate:  func(c *TrackerConfig) { c.Universe.MinPrice = decimal.NewFromInt(-1) },
			wantErr: "universe.min_price must be >= 0",
		},
		{
			name:    "unknown strictness",
			mutate:  func(c *TrackerConfig) { c.Watermarks.YearStrictness = "always" },
			wantErr: `watermarks.year_strictness: invalid year strictness "always" (expect degrade or refetch)`,
		},
		{
			name: "unknown archive format",
			mutate: func(c *TrackerConfig) {
				c.Archive.Enabled = true
				c.Archive.Format = "xml"
			},
			wantErr: `archive.format: unsupported archive format "xml" (use csv, json or parquet)`,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *TrackerConfig) { c.Poller.Interval = 0 },
			wantErr: "poller.interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
