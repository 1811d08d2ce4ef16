// Package ingest drives watermark ingestion passes: a full bootstrap when
// the store is empty, an incremental catch-up when it has fallen behind, and
// a no-op when it is current. One pass per invocation, identified by a run ID
// carried through every log line.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/fanout"
	"github.com/bobtabor/hve-data/internal/model"
	"github.com/bobtabor/hve-data/internal/notify"
	"github.com/bobtabor/hve-data/internal/watermark"
)

// Fetcher is the market-data surface the pipeline pulls bars from.
type Fetcher interface {
	FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.VolumeBar, error)
}

// Universe enumerates the symbols a bootstrap should track.
type Universe interface {
	Filtered(ctx context.Context) ([]string, error)
}

// Archiver persists raw fetched history. Optional; failures are logged and
// never fail the pass.
type Archiver interface {
	Write(symbol string, bars []model.VolumeBar) error
}

// Mode names what a pass actually did.
type Mode string

const (
	ModeBootstrap Mode = "bootstrap"
	ModeCatchUp   Mode = "catchup"
	ModeNoop      Mode = "noop"
)

// Config holds pipeline tuning.
type Config struct {
	HistoryYears   int  // bootstrap fetch depth (default 20)
	SeedBatch      int  // symbols per bulk store write (default 100)
	ForceBootstrap bool // re-seed from deep history even when records exist
	Fetch          fanout.Config
}

// DefaultConfig returns the standard pipeline shape.
func DefaultConfig() Config {
	return Config{
		HistoryYears: 20,
		SeedBatch:    100,
		Fetch:        fanout.DefaultConfig(),
	}
}

// Report summarizes one completed pass.
type Report struct {
	RunID   string
	Mode    Mode
	Symbols int // symbols the pass attempted
	Seeded  int // records written by bootstrap
	Updated int // symbols whose marks moved during catch-up
	Skipped int // symbols dropped after fetch failures
	Events  int // watermark events handed to the notifier
	Elapsed time.Duration
}

// Pipeline wires the fetch client, store, universe screen and notifier into
// one ingestion pass.
type Pipeline struct {
	cfg      Config
	fetcher  Fetcher
	store    *watermark.Store
	universe Universe
	cal      *calendar.Calendar
	notifier notify.Notifier
	archiver Archiver
	logger   *slog.Logger
}

// New builds a Pipeline. The archiver is optional; see SetArchiver.
func New(cfg Config, fetcher Fetcher, store *watermark.Store, universe Universe, cal *calendar.Calendar, notifier notify.Notifier, logger *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.HistoryYears <= 0 {
		cfg.HistoryYears = def.HistoryYears
	}
	if cfg.SeedBatch <= 0 {
		cfg.SeedBatch = def.SeedBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		universe: universe,
		cal:      cal,
		notifier: notifier,
		logger:   logger,
	}
}

// SetArchiver enables raw-history archival during bootstrap.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// Run executes one ingestion pass against the last complete trading day.
// The last-ingestion scalar advances exactly once, after the pass succeeds.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)

	target := p.cal.PreviousTradingDay(p.cal.Today())
	last, hasLast, err := p.store.LastIngestion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read last ingestion: %w", err)
	}
	stats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read store stats: %w", err)
	}

	switch {
	case p.cfg.ForceBootstrap || stats.Symbols == 0:
		report.Mode = ModeBootstrap
		logger.Info("bootstrapping",
			"target", calendar.FormatDate(target),
			"forced", p.cfg.ForceBootstrap,
			"existing_symbols", stats.Symbols,
		)
		if err := p.bootstrap(ctx, logger, target, report); err != nil {
			return nil, err
		}

	case !hasLast || last.Before(target):
		report.Mode = ModeCatchUp
		from := catchUpStart(last, hasLast, target)
		logger.Info("store is stale, catching up",
			"from", calendar.FormatDate(from),
			"to", calendar.FormatDate(target),
		)
		if err := p.catchUp(ctx, logger, from, target, report); err != nil {
			return nil, err
		}

	default:
		report.Mode = ModeNoop
		report.Elapsed = time.Since(start)
		logger.Info("store is current, nothing to ingest", "last", calendar.FormatDate(last))
		return report, nil
	}

	if err := p.store.SetLastIngestion(ctx, target); err != nil {
		return nil, fmt.Errorf("advance last ingestion: %w", err)
	}

	p.announce(ctx, logger, report, last, hasLast, target)

	report.Elapsed = time.Since(start)
	logger.Info("ingestion pass complete",
		"mode", report.Mode,
		"symbols", report.Symbols,
		"seeded", report.Seeded,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"events", report.Events,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

// catchUpStart picks the first date a catch-up must cover. When the scalar
// was lost (store has records but no meta row), one trailing-year window
// heals the year marks exactly.
func catchUpStart(last time.Time, hasLast bool, target time.Time) time.Time {
	if hasLast {
		return last.AddDate(0, 0, 1)
	}
	return target.AddDate(0, 0, -365)
}

// bootstrap screens the universe and seeds full records from deep history.
func (p *Pipeline) bootstrap(ctx context.Context, logger *slog.Logger, target time.Time, report *Report) error {
	symbols, err := p.universe.Filtered(ctx)
	if err != nil {
		return fmt.Errorf("screen universe: %w", err)
	}
	if len(symbols) == 0 {
		return errors.New("no symbols passed the universe screen")
	}
	report.Symbols = len(symbols)
	from := target.AddDate(-p.cfg.HistoryYears, 0, 0)

	histories, fr := fanout.Run(ctx, symbols,
		func(s string) string { return s },
		func(ctx context.Context, symbol string) ([]model.VolumeBar, error) {
			bars, err := p.fetcher.FetchHistory(ctx, symbol, from, target)
			if errors.Is(err, api.ErrPartialHistory) {
				logger.Warn("partial history, seeding from prefix",
					"symbol", symbol, "bars", len(bars), "err", err)
			} else if err != nil {
				return nil, err
			}
			p.archive(logger, symbol, bars)
			return bars, nil
		},
		p.cfg.Fetch, logger)

	for sym, err := range fr.Errors {
		logger.Warn("history fetch failed, skipping until next run", "symbol", sym, "err", err)
	}
	if len(histories) == 0 {
		return fmt.Errorf("all %d symbols failed to fetch", len(symbols))
	}

	seeds := make([]watermark.Seed, 0, p.cfg.SeedBatch)
	flush := func() error {
		if len(seeds) == 0 {
			return nil
		}
		n, err := p.store.BatchApply(ctx, seeds)
		if err != nil {
			return fmt.Errorf("seed batch: %w", err)
		}
		report.Seeded += n
		seeds = seeds[:0]
		return nil
	}

	// Iterate the symbol list, not the map, so batches are deterministic.
	for _, sym := range symbols {
		bars, ok := histories[sym]
		if !ok {
			report.Skipped++
			continue
		}
		if len(bars) == 0 {
			logger.Warn("no bars in history window, skipping", "symbol", sym)
			report.Skipped++
			continue
		}
		seeds = append(seeds, watermark.Seed{Symbol: sym, History: bars})
		if len(seeds) == p.cfg.SeedBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// catchUp fetches the missed window for every known symbol and applies each
// bar chronologically with the window attached as recompute history.
func (p *Pipeline) catchUp(ctx context.Context, logger *slog.Logger, from, to time.Time, report *Report) error {
	symbols, err := p.store.Symbols(ctx)
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	report.Symbols = len(symbols)

	updated, fr := fanout.Run(ctx, symbols,
		func(s string) string { return s },
		func(ctx context.Context, symbol string) (int, error) {
			bars, err := p.fetcher.FetchHistory(ctx, symbol, from, to)
			if errors.Is(err, api.ErrPartialHistory) {
				logger.Warn("partial window, applying prefix", "symbol", symbol, "bars", len(bars), "err", err)
			} else if err != nil {
				return 0, err
			}

			// Bars arrive ascending; the per-bar path depends on it.
			changes := 0
			for _, b := range bars {
				res, err := p.store.Apply(ctx, model.Observation{
					Symbol: symbol,
					Date:   b.Date,
					Volume: b.Volume,
				}, bars)
				if err != nil {
					return changes, err
				}
				if res.Changed() {
					changes++
				}
			}
			if changes > 0 {
				return 1, nil
			}
			return 0, nil
		},
		p.cfg.Fetch, logger)

	for sym, err := range fr.Errors {
		logger.Warn("catch-up failed for symbol", "symbol", sym, "err", err)
	}
	report.Skipped = fr.Failed
	for _, n := range updated {
		report.Updated += n
	}
	if len(symbols) > 0 && fr.Succeeded == 0 {
		return fmt.Errorf("all %d symbols failed to catch up", len(symbols))
	}
	return nil
}

// archive writes raw bars through the optional archiver, best effort.
func (p *Pipeline) archive(logger *slog.Logger, symbol string, bars []model.VolumeBar) {
	if p.archiver == nil || len(bars) == 0 {
		return
	}
	if err := p.archiver.Write(symbol, bars); err != nil {
		logger.Warn("archive write failed", "symbol", symbol, "err", err)
	}
}

// announce feeds the notifier the watermark events this pass surfaced: on
// bootstrap the records set on the target day, on catch-up everything dated
// after the previous ingestion.
func (p *Pipeline) announce(ctx context.Context, logger *slog.Logger, report *Report, last time.Time, hasLast bool, target time.Time) {
	if p.notifier == nil {
		return
	}

	var (
		events []model.WatermarkEvent
		err    error
	)
	if report.Mode == ModeBootstrap || !hasLast {
		events, err = p.store.EventsOn(ctx, target)
	} else {
		events, err = p.store.EventsSince(ctx, last)
	}
	if err != nil {
		logger.Warn("event query failed", "err", err)
		return
	}
	if len(events) == 0 {
		return
	}
	if err := p.notifier.Events(ctx, events); err != nil {
		logger.Warn("event notification failed", "err", err)
		return
	}
	report.Events = len(events)
}
