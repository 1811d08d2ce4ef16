package watermark

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobtabor/hve-data/internal/model"
)

// MemoryBackend keeps all watermarks in a map. Used by tests and one-shot
// tooling; state is lost on exit.
type MemoryBackend struct {
	mu sync.RWMutex

	// All records indexed by symbol.
	marks map[string]model.Watermark

	// Last successful ingestion date; hasIngestion distinguishes "never".
	lastIngestion time.Time
	hasIngestion  bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{marks: make(map[string]model.Watermark)}
}

func (b *MemoryBackend) Get(_ context.Context, symbol string) (model.Watermark, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	w, ok := b.marks[symbol]
	return w, ok, nil
}

func (b *MemoryBackend) Put(_ context.Context, w model.Watermark) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.marks[w.Symbol] = w
	return nil
}

func (b *MemoryBackend) PutBatch(_ context.Context, ws []model.Watermark) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range ws {
		b.marks[w.Symbol] = w
	}
	return nil
}

func (b *MemoryBackend) Symbols(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	symbols := make([]string, 0, len(b.marks))
	for s := range b.marks {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (b *MemoryBackend) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.marks), nil
}

func (b *MemoryBackend) EventsSince(_ context.Context, since time.Time) ([]model.WatermarkEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.collectEvents(func(d time.Time) bool { return d.After(since) }), nil
}

func (b *MemoryBackend) EventsOn(_ context.Context, date time.Time) ([]model.WatermarkEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.collectEvents(func(d time.Time) bool { return d.Equal(date) }), nil
}

// collectEvents scans records into events, caller holds at least a read lock.
func (b *MemoryBackend) collectEvents(match func(time.Time) bool) []model.WatermarkEvent {
	var events []model.WatermarkEvent
	for _, w := range b.marks {
		if !w.EverDate.IsZero() && match(w.EverDate) {
			events = append(events, model.WatermarkEvent{
				Symbol: w.Symbol,
				Date:   w.EverDate,
				Volume: w.EverVolume,
				Kind:   model.KindEver,
			})
		}
		if w.HasYear() && match(w.YearDate) {
			events = append(events, model.WatermarkEvent{
				Symbol: w.Symbol,
				Date:   w.YearDate,
				Volume: w.YearVolume,
				Kind:   model.KindYear,
			})
		}
	}
	sortEvents(events)
	return events
}

// sortEvents orders newest first, then largest volume, then symbol and kind
// for determinism.
func sortEvents(events []model.WatermarkEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Volume != b.Volume {
			return a.Volume > b.Volume
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Kind < b.Kind
	})
}

func (b *MemoryBackend) LastIngestion(_ context.Context) (time.Time, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastIngestion, b.hasIngestion, nil
}

func (b *MemoryBackend) SetLastIngestion(_ context.Context, date time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastIngestion = date
	b.hasIngestion = true
	return nil
}
