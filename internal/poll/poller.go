// Package poll watches intraday volume during the trading session and pushes
// record-breaking observations to the notification boundary.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
	"github.com/bobtabor/hve-data/internal/notify"
	"github.com/bobtabor/hve-data/internal/watermark"
)

// SnapshotSource provides current-day volume for the whole market.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (map[string]model.SnapshotEntry, error)
}

// HistorySource re-fetches trailing bars when refetch strictness is on.
type HistorySource interface {
	RecentBars(ctx context.Context, symbol string, days int) ([]model.VolumeBar, error)
}

// Gate reports whether the trading session is active. The loop checks it
// once per tick and stops cleanly when it turns false.
type Gate interface {
	SessionActive(ctx context.Context) (bool, error)
}

// GateFunc is a function adapter for Gate.
type GateFunc func(ctx context.Context) (bool, error)

func (f GateFunc) SessionActive(ctx context.Context) (bool, error) {
	return f(ctx)
}

// StatusGate gates the loop on the remote market-status endpoint.
func StatusGate(client *api.Client) Gate {
	return GateFunc(func(ctx context.Context) (bool, error) {
		st, err := client.GetMarketStatus(ctx)
		if err != nil {
			return false, err
		}
		return st.Open, nil
	})
}

// Config holds poll loop configuration.
type Config struct {
	Interval   time.Duration        // tick cadence (default: 30m)
	Timeout    time.Duration        // per-tick deadline (default: 60s)
	Strictness watermark.Strictness // degraded-year handling (default: degrade)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:   30 * time.Minute,
		Timeout:    60 * time.Second,
		Strictness: watermark.StrictnessDegrade,
	}
}

// Poller periodically applies snapshot volume to the watermark store.
type Poller struct {
	cfg      Config
	source   SnapshotSource
	history  HistorySource
	store    *watermark.Store
	gate     Gate
	notifier notify.Notifier
	cal      *calendar.Calendar
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. history may be nil unless refetch strictness
// is configured.
func New(cfg Config, source SnapshotSource, history HistorySource, store *watermark.Store, gate Gate, notifier notify.Notifier, cal *calendar.Calendar, logger *slog.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Strictness == "" {
		cfg.Strictness = def.Strictness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		history:  history,
		store:    store,
		gate:     gate,
		notifier: notifier,
		cal:      cal,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("live poller started",
		"interval", p.cfg.Interval,
		"strictness", p.cfg.Strictness,
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("live poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop. Ticks immediately on start.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if !p.tick() {
		return
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if !p.tick() {
				return
			}
		}
	}
}

// tick runs one poll cycle. Returns false when the loop should stop. A
// tick's failure never ends the loop; the next tick gets a fresh chance.
func (p *Poller) tick() bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	active, err := p.gate.SessionActive(ctx)
	if err != nil {
		p.logger.Warn("session gate check failed", "err", err)
		return true
	}
	if !active {
		p.logger.Info("session inactive, stopping live poller")
		return false
	}

	snap, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		p.logger.Warn("snapshot fetch failed", "err", err)
		return true
	}

	symbols, err := p.store.Symbols(ctx)
	if err != nil {
		p.logger.Warn("symbol listing failed", "err", err)
		return true
	}

	today := p.cal.Today()
	var hits []model.LiveHit
	applied := 0

	for _, sym := range symbols {
		entry, ok := snap[sym]
		if !ok {
			continue
		}

		var bars []model.VolumeBar
		if p.cfg.Strictness == watermark.StrictnessRefetch {
			bars = p.yearBars(ctx, sym, today)
		}

		res, err := p.store.Apply(ctx, model.Observation{
			Symbol: sym,
			Date:   today,
			Volume: entry.Volume,
		}, bars)
		if err != nil {
			p.logger.Warn("apply failed", "symbol", sym, "err", err)
			continue
		}
		applied++

		hits = append(hits, buildHits(res, entry)...)
	}

	if len(hits) > 0 {
		if err := p.notifier.LiveHits(ctx, hits); err != nil {
			p.logger.Warn("live hit notification failed", "err", err)
		}
	}

	p.logger.Info("poll tick complete",
		"known", len(symbols),
		"applied", applied,
		"hits", len(hits),
		"duration", time.Since(start),
	)
	return true
}

// yearBars fetches a trailing-year window when the symbol's year mark
// would age out at date. Attaching the window makes the apply recompute
// the true year max instead of degrading to the lone observation. On
// lookup or fetch failure it returns nil and the apply degrades.
func (p *Poller) yearBars(ctx context.Context, symbol string, date time.Time) []model.VolumeBar {
	if p.history == nil {
		return nil
	}

	yearDate, _, ok, err := p.store.Year(ctx, symbol)
	if err != nil {
		p.logger.Warn("year lookup failed", "symbol", symbol, "err", err)
		return nil
	}
	if ok && !yearDate.Before(date.AddDate(0, 0, -365)) {
		return nil
	}

	bars, err := p.history.RecentBars(ctx, symbol, 365)
	if err != nil && !errors.Is(err, api.ErrPartialHistory) {
		p.logger.Warn("year refetch failed, degrading", "symbol", symbol, "err", err)
		return nil
	}
	return bars
}

// buildHits turns an apply result into notification tuples, one per moved
// mark, carrying the prior pair as the reference.
func buildHits(res watermark.Result, entry model.SnapshotEntry) []model.LiveHit {
	if !res.Changed() {
		return nil
	}

	var hits []model.LiveHit
	if res.EverUpdated {
		hits = append(hits, model.LiveHit{
			Symbol:          entry.Symbol,
			ReferenceDate:   res.Prev.EverDate,
			ReferenceVolume: res.Prev.EverVolume,
			ObservedVolume:  entry.Volume,
			ChangePct:       entry.ChangePct,
			Kind:            model.KindEver,
		})
	}
	if res.YearUpdated {
		hits = append(hits, model.LiveHit{
			Symbol:          entry.Symbol,
			ReferenceDate:   res.Prev.YearDate,
			ReferenceVolume: res.Prev.YearVolume,
			ObservedVolume:  entry.Volume,
			ChangePct:       entry.ChangePct,
			Kind:            model.KindYear,
		})
	}
	return hits
}
