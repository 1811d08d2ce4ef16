package poll

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
	"github.com/bobtabor/hve-data/internal/watermark"
)

// fakeSnapshot serves a fixed snapshot map.
type fakeSnapshot struct {
	entries map[string]model.SnapshotEntry
	err     error
	calls   atomic.Int32
}

func (f *fakeSnapshot) FetchSnapshot(ctx context.Context) (map[string]model.SnapshotEntry, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

// fakeHistory serves canned trailing bars and records which symbols asked.
type fakeHistory struct {
	mu        sync.Mutex
	bars      map[string][]model.VolumeBar
	err       error
	requested []string
}

func (f *fakeHistory) RecentBars(ctx context.Context, symbol string, days int) ([]model.VolumeBar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, symbol)
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[symbol], nil
}

func (f *fakeHistory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requested)
}

// captureNotifier collects delivered live hits.
type captureNotifier struct {
	mu   sync.Mutex
	hits []model.LiveHit
}

func (c *captureNotifier) LiveHits(ctx context.Context, hits []model.LiveHit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = append(c.hits, hits...)
	return nil
}

func (c *captureNotifier) Events(ctx context.Context, events []model.WatermarkEvent) error {
	return nil
}

func (c *captureNotifier) delivered() []model.LiveHit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.LiveHit(nil), c.hits...)
}

func activeGate() Gate {
	return GateFunc(func(ctx context.Context) (bool, error) {
		return true, nil
	})
}

func newTestPoller(t *testing.T, cfg Config, snap SnapshotSource, hist HistorySource, gate Gate) (*Poller, *watermark.Store, *captureNotifier) {
	t.Helper()
	cal, err := calendar.New("America/New_York")
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(new(strings.Builder), nil))
	store := watermark.NewStore(watermark.NewMemoryBackend(), logger)
	notifier := &captureNotifier{}
	return New(cfg, snap, hist, store, gate, notifier, cal, logger), store, notifier
}

// seed inserts a watermark record by applying a single observation.
func seed(t *testing.T, store *watermark.Store, symbol string, date time.Time, volume int64) {
	t.Helper()
	if _, err := store.Apply(context.Background(), model.Observation{Symbol: symbol, Date: date, Volume: volume}, nil); err != nil {
		t.Fatalf("seed %s: %v", symbol, err)
	}
}

func TestPoller_TickAppliesSnapshot(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{
		"AAPL": {Symbol: "AAPL", Volume: 750000, ChangePct: 12.5},
		"GME":  {Symbol: "GME", Volume: 100, ChangePct: -3.2},
		"MSFT": {Symbol: "MSFT", Volume: 999999999, ChangePct: 44.0},
	}}

	p, store, notifier := newTestPoller(t, Config{}, snap, nil, activeGate())
	p.ctx = context.Background()

	today := p.cal.Today()
	prior := today.AddDate(0, 0, -30)
	seed(t, store, "AAPL", prior, 500000)
	seed(t, store, "GME", prior, 900000)

	if !p.tick() {
		t.Fatal("tick() = false, want true")
	}

	// AAPL beat both marks, carrying the old pair as the reference.
	hits := notifier.delivered()
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2: %+v", len(hits), hits)
	}
	for i, kind := range []model.Kind{model.KindEver, model.KindYear} {
		h := hits[i]
		if h.Symbol != "AAPL" || h.Kind != kind {
			t.Errorf("hits[%d] = %s/%s, want AAPL/%s", i, h.Symbol, h.Kind, kind)
		}
		if !h.ReferenceDate.Equal(prior) || h.ReferenceVolume != 500000 {
			t.Errorf("hits[%d] reference = (%s, %d), want (%s, 500000)",
				i, calendar.FormatDate(h.ReferenceDate), h.ReferenceVolume, calendar.FormatDate(prior))
		}
		if h.ObservedVolume != 750000 || h.ChangePct != 12.5 {
			t.Errorf("hits[%d] observed = (%d, %.1f), want (750000, 12.5)", i, h.ObservedVolume, h.ChangePct)
		}
	}

	mark, ok, err := store.Get(context.Background(), "AAPL")
	if err != nil || !ok {
		t.Fatalf("Get(AAPL) = %v, %v", ok, err)
	}
	if mark.EverVolume != 750000 || !mark.EverDate.Equal(today) {
		t.Errorf("AAPL ever = (%s, %d), want (%s, 750000)",
			calendar.FormatDate(mark.EverDate), mark.EverVolume, calendar.FormatDate(today))
	}

	// GME stayed below its record.
	mark, _, err = store.Get(context.Background(), "GME")
	if err != nil {
		t.Fatalf("Get(GME): %v", err)
	}
	if mark.EverVolume != 900000 {
		t.Errorf("GME ever volume = %d, want 900000", mark.EverVolume)
	}

	// Unknown symbols in the snapshot are ignored.
	if _, ok, _ := store.Get(context.Background(), "MSFT"); ok {
		t.Error("MSFT was applied, want snapshot intersected with known symbols")
	}
}

func TestPoller_TickStopsWhenInactive(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{}}
	gate := GateFunc(func(ctx context.Context) (bool, error) {
		return false, nil
	})

	p, _, _ := newTestPoller(t, Config{}, snap, nil, gate)
	p.ctx = context.Background()

	if p.tick() {
		t.Error("tick() = true with inactive session, want false")
	}
	if got := snap.calls.Load(); got != 0 {
		t.Errorf("snapshot calls = %d, want 0", got)
	}
}

func TestPoller_TickContinuesOnGateError(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{}}
	gate := GateFunc(func(ctx context.Context) (bool, error) {
		return false, errors.New("status endpoint down")
	})

	p, _, _ := newTestPoller(t, Config{}, snap, nil, gate)
	p.ctx = context.Background()

	if !p.tick() {
		t.Error("tick() = false on gate error, want true")
	}
	if got := snap.calls.Load(); got != 0 {
		t.Errorf("snapshot calls = %d, want 0", got)
	}
}

func TestPoller_TickContinuesOnSnapshotError(t *testing.T) {
	snap := &fakeSnapshot{err: errors.New("snapshot unavailable")}

	p, store, notifier := newTestPoller(t, Config{}, snap, nil, activeGate())
	p.ctx = context.Background()

	seed(t, store, "AAPL", p.cal.Today().AddDate(0, 0, -10), 100)

	if !p.tick() {
		t.Error("tick() = false on snapshot error, want true")
	}
	if got := notifier.delivered(); len(got) != 0 {
		t.Errorf("hits = %+v, want none", got)
	}
}

func TestPoller_RefetchStrictness(t *testing.T) {
	p, store, notifier := newTestPoller(t, Config{Strictness: watermark.StrictnessRefetch}, nil, nil, activeGate())
	today := p.cal.Today()

	// OLD's year mark aged out 400 days ago; FRESH is still in window.
	aged := today.AddDate(0, 0, -400)
	fresh := today.AddDate(0, 0, -30)
	seed(t, store, "OLD", aged, 500000)
	seed(t, store, "FRESH", fresh, 800000)

	hist := &fakeHistory{bars: map[string][]model.VolumeBar{
		"OLD": {
			{Symbol: "OLD", Date: today.AddDate(0, 0, -100), Volume: 200000},
			{Symbol: "OLD", Date: today.AddDate(0, 0, -50), Volume: 350000},
		},
	}}
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{
		"OLD":   {Symbol: "OLD", Volume: 10000, ChangePct: 1.0},
		"FRESH": {Symbol: "FRESH", Volume: 5000, ChangePct: 0.5},
	}}
	p.source = snap
	p.history = hist
	p.ctx = context.Background()

	if !p.tick() {
		t.Fatal("tick() = false, want true")
	}

	// Only the aged symbol triggered a history fetch.
	if got := hist.calls(); got != 1 {
		t.Fatalf("history fetches = %d, want 1", got)
	}
	hist.mu.Lock()
	requested := hist.requested[0]
	hist.mu.Unlock()
	if requested != "OLD" {
		t.Errorf("refetched symbol = %s, want OLD", requested)
	}

	// The year mark was recomputed from the window, not degraded.
	yearDate, yearVolume, ok, err := store.Year(context.Background(), "OLD")
	if err != nil || !ok {
		t.Fatalf("Year(OLD) = %v, %v", ok, err)
	}
	wantDate := today.AddDate(0, 0, -50)
	if !yearDate.Equal(wantDate) || yearVolume != 350000 {
		t.Errorf("OLD year = (%s, %d), want (%s, 350000)",
			calendar.FormatDate(yearDate), yearVolume, calendar.FormatDate(wantDate))
	}

	// Ever is untouched.
	mark, _, _ := store.Get(context.Background(), "OLD")
	if mark.EverVolume != 500000 {
		t.Errorf("OLD ever volume = %d, want 500000", mark.EverVolume)
	}

	// The recompute reports a year move referencing the aged pair.
	hits := notifier.delivered()
	if len(hits) != 1 {
		t.Fatalf("len(hits) = %d, want 1: %+v", len(hits), hits)
	}
	h := hits[0]
	if h.Symbol != "OLD" || h.Kind != model.KindYear {
		t.Errorf("hit = %s/%s, want OLD/%s", h.Symbol, h.Kind, model.KindYear)
	}
	if !h.ReferenceDate.Equal(aged) || h.ReferenceVolume != 500000 {
		t.Errorf("hit reference = (%s, %d), want (%s, 500000)",
			calendar.FormatDate(h.ReferenceDate), h.ReferenceVolume, calendar.FormatDate(aged))
	}
	if h.ObservedVolume != 10000 {
		t.Errorf("hit observed volume = %d, want 10000", h.ObservedVolume)
	}
}

func TestPoller_RefetchFailureDegrades(t *testing.T) {
	p, store, _ := newTestPoller(t, Config{Strictness: watermark.StrictnessRefetch}, nil, nil, activeGate())
	today := p.cal.Today()
	seed(t, store, "OLD", today.AddDate(0, 0, -400), 500000)

	hist := &fakeHistory{err: errors.New("bars unavailable")}
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{
		"OLD": {Symbol: "OLD", Volume: 10000},
	}}
	p.source = snap
	p.history = hist
	p.ctx = context.Background()

	if !p.tick() {
		t.Fatal("tick() = false, want true")
	}

	yearDate, yearVolume, ok, err := store.Year(context.Background(), "OLD")
	if err != nil || !ok {
		t.Fatalf("Year(OLD) = %v, %v", ok, err)
	}
	if !yearDate.Equal(today) || yearVolume != 10000 {
		t.Errorf("OLD year = (%s, %d), want degraded (%s, 10000)",
			calendar.FormatDate(yearDate), yearVolume, calendar.FormatDate(today))
	}
}

func TestPoller_DegradeStrictness(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{
		"OLD": {Symbol: "OLD", Volume: 10000},
	}}
	hist := &fakeHistory{bars: map[string][]model.VolumeBar{}}

	p, store, _ := newTestPoller(t, Config{}, snap, hist, activeGate())
	today := p.cal.Today()
	seed(t, store, "OLD", today.AddDate(0, 0, -400), 500000)
	p.ctx = context.Background()

	if !p.tick() {
		t.Fatal("tick() = false, want true")
	}

	if got := hist.calls(); got != 0 {
		t.Errorf("history fetches = %d, want 0 under degrade strictness", got)
	}
	yearDate, yearVolume, _, _ := store.Year(context.Background(), "OLD")
	if !yearDate.Equal(today) || yearVolume != 10000 {
		t.Errorf("OLD year = (%s, %d), want degraded (%s, 10000)",
			calendar.FormatDate(yearDate), yearVolume, calendar.FormatDate(today))
	}
}

func TestPoller_StartStop(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{}}

	p, _, _ := newTestPoller(t, Config{Interval: 30 * time.Millisecond}, snap, nil, activeGate())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the immediate tick plus at least one more.
	time.Sleep(80 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := snap.calls.Load(); got < 2 {
		t.Errorf("snapshot calls = %d, want >= 2", got)
	}
}

func TestPoller_LoopEndsWithSession(t *testing.T) {
	snap := &fakeSnapshot{entries: map[string]model.SnapshotEntry{}}

	var gateCalls atomic.Int32
	gate := GateFunc(func(ctx context.Context) (bool, error) {
		return gateCalls.Add(1) == 1, nil
	})

	p, _, _ := newTestPoller(t, Config{Interval: 15 * time.Millisecond}, snap, nil, gate)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// First tick is active, second sees the session close and the loop
	// exits on its own.
	time.Sleep(150 * time.Millisecond)

	if got := gateCalls.Load(); got != 2 {
		t.Errorf("gate calls = %d, want 2", got)
	}
	if got := snap.calls.Load(); got != 1 {
		t.Errorf("snapshot calls = %d, want 1", got)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPoller_Defaults(t *testing.T) {
	p, _, _ := newTestPoller(t, Config{}, nil, nil, nil)
	if p.cfg.Interval != 30*time.Minute {
		t.Errorf("Interval = %s, want 30m", p.cfg.Interval)
	}
	if p.cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %s, want 60s", p.cfg.Timeout)
	}
	if p.cfg.Strictness != watermark.StrictnessDegrade {
		t.Errorf("Strictness = %s, want %s", p.cfg.Strictness, watermark.StrictnessDegrade)
	}
}
