package watermark

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bobtabor/hve-data/internal/model"
)

// ErrStoreWrite marks a failed persistence attempt. The observation is
// considered not applied; the caller may retry the whole observation.
var ErrStoreWrite = errors.New("watermark store write failed")

const (
	// yearWindowDays is the trailing window for the year watermark.
	yearWindowDays = 365

	// shardCount is the number of per-symbol write locks.
	shardCount = 64
)

// Backend is the persistence surface the Store drives. Implementations
// return Symbols in lexicographic order and events ordered by date
// descending, volume descending, symbol ascending, kind ascending.
type Backend interface {
	Get(ctx context.Context, symbol string) (model.Watermark, bool, error)
	Put(ctx context.Context, w model.Watermark) error
	PutBatch(ctx context.Context, ws []model.Watermark) error
	Symbols(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	EventsSince(ctx context.Context, since time.Time) ([]model.WatermarkEvent, error)
	EventsOn(ctx context.Context, date time.Time) ([]model.WatermarkEvent, error)
	LastIngestion(ctx context.Context) (time.Time, bool, error)
	SetLastIngestion(ctx context.Context, date time.Time) error
}

// Result reports what one Apply changed.
type Result struct {
	EverUpdated  bool // all-time mark moved
	YearUpdated  bool // trailing-year mark moved or was recomputed
	YearDegraded bool // year recomputed without history; approximated by the observation
	Created      bool // first record for the symbol

	Prev model.Watermark // record before the observation (zero when Created)
	Curr model.Watermark // record after the observation
}

// Changed reports whether the observation moved either mark.
func (r Result) Changed() bool {
	return r.EverUpdated || r.YearUpdated
}

// Seed is one symbol's full bar history for the bulk bootstrap path.
type Seed struct {
	Symbol  string
	History []model.VolumeBar
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Symbols       int
	LastIngestion time.Time // zero when no pass has completed
}

// Store owns the watermark update algorithm and per-symbol serialization.
type Store struct {
	backend Backend
	logger  *slog.Logger

	// Per-symbol write locks. Reads bypass these; the backend guards its
	// own state.
	shards [shardCount]sync.Mutex
}

// NewStore wraps a backend with the update algorithm.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

func shardIndex(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % shardCount)
}

// Apply merges one observation into the symbol's stored record.
//
// The all-time mark moves only on strictly greater volume, so the first
// date achieving a maximum is the one kept. When the stored year mark has
// aged out of the trailing window (or was never set), the true year mark is
// recomputed from history when supplied; without history, it degrades to
// the observation itself and the Result says so. Writes for the same symbol
// are serialized; distinct symbols proceed in parallel.
func (s *Store) Apply(ctx context.Context, obs model.Observation, history []model.VolumeBar) (Result, error) {
	mu := &s.shards[shardIndex(obs.Symbol)]
	mu.Lock()
	defer mu.Unlock()

	prev, found, err := s.backend.Get(ctx, obs.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", obs.Symbol, err)
	}

	res := Result{Created: !found, Prev: prev}
	curr := prev
	curr.Symbol = obs.Symbol

	if !found {
		// First observation for the symbol establishes the all-time mark
		// even at zero volume.
		curr.EverDate = obs.Date
		curr.EverVolume = obs.Volume
		res.EverUpdated = true
	} else if obs.Volume > curr.EverVolume {
		curr.EverDate = obs.Date
		curr.EverVolume = obs.Volume
		res.EverUpdated = true
	}

	windowStart := obs.Date.AddDate(0, 0, -yearWindowDays)

	if curr.YearDate.IsZero() || curr.YearDate.Before(windowStart) {
		// Year mark aged out of the window (or never set): recompute.
		if date, vol, ok := maxInWindow(history, windowStart, obs.Date); ok {
			curr.YearDate = date
			curr.YearVolume = vol
		} else {
			curr.YearDate = obs.Date
			curr.YearVolume = obs.Volume
			res.YearDegraded = true
		}
		res.YearUpdated = true
	}

	if obs.Volume > curr.YearVolume {
		curr.YearDate = obs.Date
		curr.YearVolume = obs.Volume
		res.YearUpdated = true
	}

	// History replay can surface a bar larger than the recorded all-time
	// high; EverVolume >= YearVolume must hold on every exit path.
	if curr.YearVolume > curr.EverVolume {
		curr.EverDate = curr.YearDate
		curr.EverVolume = curr.YearVolume
		res.EverUpdated = true
	}

	if !res.Changed() && found {
		res.Curr = curr
		return res, nil
	}

	curr.UpdatedAt = time.Now().UnixMicro()
	if err := s.backend.Put(ctx, curr); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrStoreWrite, obs.Symbol, err)
	}
	res.Curr = curr
	return res, nil
}

// BatchApply computes watermarks directly from each seed's carried history
// and writes them in one backend round-trip, replacing any existing records.
// Seeds with empty histories are skipped. Returns the number written.
func (s *Store) BatchApply(ctx context.Context, seeds []Seed) (int, error) {
	now := time.Now().UnixMicro()
	ws := make([]model.Watermark, 0, len(seeds))
	for _, seed := range seeds {
		w, ok := fromHistory(seed.Symbol, seed.History)
		if !ok {
			s.logger.Warn("skipping seed with no bars", "symbol", seed.Symbol)
			continue
		}
		w.UpdatedAt = now
		ws = append(ws, w)
	}
	if len(ws) == 0 {
		return 0, nil
	}

	// Lock every touched shard in ascending order for the whole write.
	touched := touchedShards(ws)
	for _, i := range touched {
		s.shards[i].Lock()
	}
	defer func() {
		for _, i := range touched {
			s.shards[i].Unlock()
		}
	}()

	if err := s.backend.PutBatch(ctx, ws); err != nil {
		return 0, fmt.Errorf("%w: batch of %d: %v", ErrStoreWrite, len(ws), err)
	}
	return len(ws), nil
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

// Get returns the symbol's record, reporting absence through the bool.
func (s *Store) Get(ctx context.Context, symbol string) (model.Watermark, bool, error) {
	return s.backend.Get(ctx, symbol)
}

// Year returns the symbol's trailing-year mark; ok is false when the symbol
// is unknown or its year mark was never set.
func (s *Store) Year(ctx context.Context, symbol string) (date time.Time, volume int64, ok bool, err error) {
	w, found, err := s.backend.Get(ctx, symbol)
	if err != nil || !found || !w.HasYear() {
		return time.Time{}, 0, false, err
	}
	return w.YearDate, w.YearVolume, true, nil
}

// Symbols returns every tracked symbol in lexicographic order.
func (s *Store) Symbols(ctx context.Context) ([]string, error) {
	return s.backend.Symbols(ctx)
}

// EventsSince returns watermark events dated strictly after since,
// newest first. Passing the zero time returns everything.
func (s *Store) EventsSince(ctx context.Context, since time.Time) ([]model.WatermarkEvent, error) {
	return s.backend.EventsSince(ctx, since)
}

// EventsOn returns watermark events dated exactly on date.
func (s *Store) EventsOn(ctx context.Context, date time.Time) ([]model.WatermarkEvent, error) {
	return s.backend.EventsOn(ctx, date)
}

// LastIngestion returns the last successfully completed ingestion date.
func (s *Store) LastIngestion(ctx context.Context) (time.Time, bool, error) {
	return s.backend.LastIngestion(ctx)
}

// SetLastIngestion advances the last successful ingestion date.
func (s *Store) SetLastIngestion(ctx context.Context, date time.Time) error {
	if err := s.backend.SetLastIngestion(ctx, date); err != nil {
		return fmt.Errorf("%w: last ingestion: %v", ErrStoreWrite, err)
	}
	return nil
}

// Stats returns symbol count and last ingestion for health reporting.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	last, _, err := s.backend.LastIngestion(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Symbols: n, LastIngestion: last}, nil
}

// ----------------------------------------------------------------------------
// Pure helpers
// ----------------------------------------------------------------------------

// maxInWindow finds the maximum-volume bar within [start, end]. Ties keep
// the earliest date. ok is false when no bar falls inside the window.
func maxInWindow(bars []model.VolumeBar, start, end time.Time) (date time.Time, volume int64, ok bool) {
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		if !ok || b.Volume > volume || (b.Volume == volume && b.Date.Before(date)) {
			date, volume, ok = b.Date, b.Volume, true
		}
	}
	return date, volume, ok
}

// fromHistory builds a full watermark record from a symbol's bar history:
// ever over all bars, year over the trailing window ending at the latest
// bar's date. ok is false for an empty history.
func fromHistory(symbol string, bars []model.VolumeBar) (model.Watermark, bool) {
	if len(bars) == 0 {
		return model.Watermark{}, false
	}

	latest := bars[0].Date
	for _, b := range bars[1:] {
		if b.Date.After(latest) {
			latest = b.Date
		}
	}

	everDate, everVol, _ := maxInWindow(bars, time.Time{}, latest)
	yearDate, yearVol, _ := maxInWindow(bars, latest.AddDate(0, 0, -yearWindowDays), latest)

	return model.Watermark{
		Symbol:     symbol,
		EverDate:   everDate,
		EverVolume: everVol,
		YearDate:   yearDate,
		YearVolume: yearVol,
	}, true
}

func touchedShards(ws []model.Watermark) []int {
	seen := make(map[int]struct{}, len(ws))
	for _, w := range ws {
		seen[shardIndex(w.Symbol)] = struct{}{}
	}
	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
