package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default values for optional configuration fields.
const (
	DefaultBaseURL            = "https://api.polygon.io"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 1 * time.Second
	DefaultMinRequestInterval = 50 * time.Millisecond
	DefaultChunkDays          = 365
	DefaultCalendar           = "America/New_York"
	DefaultDBBackend          = "memory"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultExchange           = "XNAS"
	DefaultLiquiditySessions  = 10
	DefaultHistoryYears       = 20
	DefaultFetchWorkers       = 20
	DefaultFetchBatchSize     = 100
	DefaultYearStrictness     = "degrade"
	DefaultPollInterval       = 30 * time.Minute
	DefaultPollTimeout        = 60 * time.Second
	DefaultArchiveDir         = "data/archive"
	DefaultArchiveFormat      = "csv"
	DefaultMetricsPort        = 9090
)

// Default screen floors for the universe filter.
var (
	DefaultMinDollarVolume = decimal.NewFromInt(10_000_000)
	DefaultMinPrice        = decimal.NewFromInt(3)
)

func (c *TrackerConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.MinRequestInterval == 0 {
		c.API.MinRequestInterval = DefaultMinRequestInterval
	}
	if c.API.ChunkDays == 0 {
		c.API.ChunkDays = DefaultChunkDays
	}
	if c.API.Calendar == "" {
		c.API.Calendar = DefaultCalendar
	}

	// Database defaults
	if c.Database.Backend == "" {
		c.Database.Backend = DefaultDBBackend
	}
	applyDBDefaults(&c.Database.Postgres)

	// Universe defaults
	if c.Universe.Exchange == "" {
		c.Universe.Exchange = DefaultExchange
	}
	if c.Universe.LiquiditySessions == 0 {
		c.Universe.LiquiditySessions = DefaultLiquiditySessions
	}
	if c.Universe.MinDollarVolume.IsZero() {
		c.Universe.MinDollarVolume = DefaultMinDollarVolume
	}
	if c.Universe.MinPrice.IsZero() {
		c.Universe.MinPrice = DefaultMinPrice
	}

	// History defaults
	if c.History.Years == 0 {
		c.History.Years = DefaultHistoryYears
	}

	// Fetch defaults
	if c.Fetch.Workers == 0 {
		c.Fetch.Workers = DefaultFetchWorkers
	}
	if c.Fetch.BatchSize == 0 {
		c.Fetch.BatchSize = DefaultFetchBatchSize
	}

	// Watermarks defaults
	if c.Watermarks.YearStrictness == "" {
		c.Watermarks.YearStrictness = DefaultYearStrictness
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Archive defaults
	if c.Archive.Dir == "" {
		c.Archive.Dir = DefaultArchiveDir
	}
	if c.Archive.Format == "" {
		c.Archive.Format = DefaultArchiveFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
