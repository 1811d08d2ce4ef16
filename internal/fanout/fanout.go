// Package fanout runs a per-item work function across a slice with bounded
// concurrency, batched progress logging, and per-item failure isolation.
package fanout

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxWorkers caps the worker count regardless of core count.
	MaxWorkers = 20

	// DefaultBatchSize is the number of items dispatched between progress logs.
	DefaultBatchSize = 100
)

// Config controls the concurrency shape of a Run.
type Config struct {
	Workers   int // concurrent in-flight items; <= 0 selects the default
	BatchSize int // items per dispatch batch; <= 0 selects the default
}

// DefaultConfig returns the standard worker shape: one worker per CPU,
// capped at MaxWorkers.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return Config{Workers: workers, BatchSize: DefaultBatchSize}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	return c
}

// Report summarizes a completed Run. Total always equals
// Succeeded + Failed; items never dispatched because the context was
// cancelled count as failed with the context's error.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Errors    map[string]error // failed item key -> cause
	Elapsed   time.Duration
}

// Run applies fn to every item with at most cfg.Workers in flight and
// returns the successful results keyed by key(item). One item failing
// never aborts its siblings. Items are dispatched in batches; no new
// batch starts after ctx is cancelled.
func Run[T, R any](ctx context.Context, items []T, key func(T) string, fn func(context.Context, T) (R, error), cfg Config, logger *slog.Logger) (map[string]R, *Report) {
	cfg = cfg.normalized()
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	report := &Report{Total: len(items), Errors: make(map[string]error)}
	results := make(map[string]R, len(items))
	if len(items) == 0 {
		report.Elapsed = time.Since(start)
		return results, report
	}

	var mu sync.Mutex
	sem := make(chan struct{}, cfg.Workers)
	batches := (len(items) + cfg.BatchSize - 1) / cfg.BatchSize

	for b := 0; b < batches; b++ {
		lo := b * cfg.BatchSize
		hi := lo + cfg.BatchSize
		if hi > len(items) {
			hi = len(items)
		}

		if err := ctx.Err(); err != nil {
			mu.Lock()
			for _, item := range items[lo:] {
				report.Errors[key(item)] = err
			}
			mu.Unlock()
			break
		}

		var wg sync.WaitGroup
		var succeeded, failed atomic.Int64

		for _, item := range items[lo:hi] {
			wg.Add(1)
			go func(item T) {
				defer wg.Done()

				// Acquire semaphore slot.
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					mu.Lock()
					report.Errors[key(item)] = ctx.Err()
					mu.Unlock()
					failed.Add(1)
					return
				}

				r, err := fn(ctx, item)
				if err != nil {
					mu.Lock()
					report.Errors[key(item)] = err
					mu.Unlock()
					failed.Add(1)
					return
				}

				mu.Lock()
				results[key(item)] = r
				mu.Unlock()
				succeeded.Add(1)
			}(item)
		}

		wg.Wait()

		logger.Info("batch complete",
			"batch", b+1,
			"of", batches,
			"items", hi-lo,
			"succeeded", succeeded.Load(),
			"failed", failed.Load(),
			"elapsed", time.Since(start),
		)
	}

	report.Succeeded = len(results)
	report.Failed = len(report.Errors)
	report.Elapsed = time.Since(start)
	return results, report
}
