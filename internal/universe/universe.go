// Package universe enumerates and screens the tradable symbol set. A symbol
// enters the universe when its recent average dollar volume clears the
// liquidity floor and its latest close clears the price floor.
package universe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/fanout"
	"github.com/bobtabor/hve-data/internal/model"
)

// Source provides listing pages and recent bars for screening.
type Source interface {
	TickerPage(ctx context.Context, opts api.TickerPageOptions) ([]model.Listing, string, error)
	RecentBars(ctx context.Context, symbol string, days int) ([]model.VolumeBar, error)
}

// Config holds the screening thresholds.
type Config struct {
	Exchange          string          // optional primary-exchange filter, e.g. "XNAS"
	LiquiditySessions int             // sessions averaged for the dollar-volume screen
	MinDollarVolume   decimal.Decimal // floor for avg(volume) x avg(close); strictly above passes
	MinPrice          decimal.Decimal // latest close at or above passes
	Fetch             fanout.Config
}

// DefaultConfig returns the standard screen: 10-session average dollar
// volume strictly above $10M and a latest close of at least $3.
func DefaultConfig() Config {
	return Config{
		LiquiditySessions: 10,
		MinDollarVolume:   decimal.NewFromInt(10_000_000),
		MinPrice:          decimal.NewFromInt(3),
		Fetch:             fanout.DefaultConfig(),
	}
}

// Provider screens active common-stock listings down to the tracked set.
type Provider struct {
	cfg    Config
	source Source
	logger *slog.Logger
}

// NewProvider builds a Provider over a listing/bar source.
func NewProvider(cfg Config, source Source, logger *slog.Logger) *Provider {
	if cfg.LiquiditySessions <= 0 {
		cfg.LiquiditySessions = DefaultConfig().LiquiditySessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, source: source, logger: logger}
}

// Filtered returns the symbols passing the screen in lexicographic order.
// Listings are paged so memory stays bounded; each page is screened through
// the worker pool before the next is fetched. A symbol whose bars cannot be
// fetched is excluded with a warning. A listing-page failure aborts the pass.
func (p *Provider) Filtered(ctx context.Context) ([]string, error) {
	var (
		survivors []string
		cursor    string
		pages     int
	)

	for {
		listings, next, err := p.source.TickerPage(ctx, api.TickerPageOptions{
			Exchange: p.cfg.Exchange,
			Cursor:   cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("list tickers page %d: %w", pages+1, err)
		}
		pages++

		passed, report := fanout.Run(ctx, listings,
			func(l model.Listing) string { return l.Ticker },
			p.screen,
			p.cfg.Fetch, p.logger)

		for sym, err := range report.Errors {
			p.logger.Warn("screen fetch failed, excluding symbol", "symbol", sym, "err", err)
		}
		pagePassed := 0
		for sym, ok := range passed {
			if ok {
				survivors = append(survivors, sym)
				pagePassed++
			}
		}

		p.logger.Info("screened listing page",
			"page", pages,
			"listings", len(listings),
			"passed", pagePassed,
			"failed", report.Failed,
		)

		if next == "" {
			break
		}
		cursor = next
	}

	sort.Strings(survivors)
	return survivors, nil
}

// screen fetches a symbol's recent sessions and applies the liquidity and
// price floors.
func (p *Provider) screen(ctx context.Context, l model.Listing) (bool, error) {
	// Two calendar days per session covers weekends and scattered holidays.
	days := p.cfg.LiquiditySessions * 2
	bars, err := p.source.RecentBars(ctx, l.Ticker, days)
	if err != nil {
		return false, err
	}
	if len(bars) < p.cfg.LiquiditySessions {
		// Too new or too thinly traded to average.
		return false, nil
	}

	recent := bars[len(bars)-p.cfg.LiquiditySessions:]

	volSum := decimal.Zero
	closeSum := decimal.Zero
	for _, b := range recent {
		volSum = volSum.Add(decimal.NewFromInt(b.Volume))
		closeSum = closeSum.Add(decimal.NewFromFloat(b.Close))
	}
	n := decimal.NewFromInt(int64(len(recent)))
	avgVol := volSum.Div(n)
	avgClose := closeSum.Div(n)

	dollarVolume := avgVol.Mul(avgClose)
	latestClose := decimal.NewFromFloat(recent[len(recent)-1].Close)

	return dollarVolume.GreaterThan(p.cfg.MinDollarVolume) &&
		latestClose.GreaterThanOrEqual(p.cfg.MinPrice), nil
}
