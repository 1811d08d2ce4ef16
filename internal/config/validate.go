package config

import (
	"errors"
	"fmt"

	"github.com/bobtabor/hve-data/internal/archive"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/watermark"
)

// Validate checks that all required fields are set and values are valid.
func (c *TrackerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.APIKey == "" {
		return errors.New("api.api_key is required")
	}
	if c.API.ChunkDays < 1 {
		return errors.New("api.chunk_days must be >= 1")
	}
	if _, err := calendar.New(c.API.Calendar); err != nil {
		return fmt.Errorf("api.calendar: %w", err)
	}

	switch c.Database.Backend {
	case "memory":
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("database.backend must be memory or postgres, got %q", c.Database.Backend)
	}

	if c.Universe.LiquiditySessions < 1 {
		return errors.New("universe.liquidity_sessions must be >= 1")
	}
	if c.Universe.MinDollarVolume.IsNegative() {
		return errors.New("universe.min_dollar_volume must be >= 0")
	}
	if c.Universe.MinPrice.IsNegative() {
		return errors.New("universe.min_price must be >= 0")
	}

	if c.History.Years < 1 {
		return errors.New("history.years must be >= 1")
	}

	if c.Fetch.Workers < 1 {
		return errors.New("fetch.workers must be >= 1")
	}
	if c.Fetch.BatchSize < 1 {
		return errors.New("fetch.batch_size must be >= 1")
	}

	if _, err := watermark.ParseStrictness(c.Watermarks.YearStrictness); err != nil {
		return fmt.Errorf("watermarks.year_strictness: %w", err)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be positive")
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be positive")
	}

	if c.Archive.Enabled {
		if _, err := archive.NewSaver(c.Archive.Format); err != nil {
			return fmt.Errorf("archive.format: %w", err)
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
