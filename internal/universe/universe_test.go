package universe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/fanout"
	"github.com/bobtabor/hve-data/internal/model"
)

// MockSource is a mock implementation of Source for testing.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) TickerPage(ctx context.Context, opts api.TickerPageOptions) ([]model.Listing, string, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]model.Listing), args.String(1), args.Error(2)
}

func (m *MockSource) RecentBars(ctx context.Context, symbol string, days int) ([]model.VolumeBar, error) {
	args := m.Called(ctx, symbol, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VolumeBar), args.Error(1)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Fetch = fanout.Config{Workers: 2, BatchSize: 10}
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(strings.Builder), nil))
}

func listing(ticker string) model.Listing {
	return model.Listing{Ticker: ticker, Exchange: "XNAS", Type: "CS", Active: true}
}

// sessions builds n daily bars with uniform volume and close, ending 2025-06-02.
func sessions(symbol string, n int, volume int64, close float64) []model.VolumeBar {
	bars := make([]model.VolumeBar, n)
	end := calendar.Date(2025, 6, 2)
	for i := 0; i < n; i++ {
		bars[i] = model.VolumeBar{
			Symbol: symbol,
			Date:   end.AddDate(0, 0, i-n+1),
			Volume: volume,
			Close:  close,
		}
	}
	return bars
}

func TestFiltered(t *testing.T) {
	ctx := context.Background()

	t.Run("screens a page on both floors", func(t *testing.T) {
		source := new(MockSource)
		source.On("TickerPage", mock.Anything, mock.Anything).
			Return([]model.Listing{
				listing("AAPL"), listing("PENNY"), listing("THIN"), listing("DOWN"),
			}, "", nil).Once()

		// 50M shares at $200: far above the $10M dollar-volume floor.
		source.On("RecentBars", mock.Anything, "AAPL", 20).
			Return(sessions("AAPL", 10, 50_000_000, 200.0), nil)
		// Liquid but under the $3 price floor.
		source.On("RecentBars", mock.Anything, "PENNY", 20).
			Return(sessions("PENNY", 10, 80_000_000, 1.50), nil)
		// Priced fine but illiquid: 10k shares at $20 is $200k a day.
		source.On("RecentBars", mock.Anything, "THIN", 20).
			Return(sessions("THIN", 10, 10_000, 20.0), nil)
		// Fetch failure excludes without aborting the pass.
		source.On("RecentBars", mock.Anything, "DOWN", 20).
			Return(nil, errors.New("remote unavailable"))

		got, err := NewProvider(testConfig(), source, testLogger()).Filtered(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"AAPL"}, got)
		source.AssertExpectations(t)
	})

	t.Run("follows pagination cursors", func(t *testing.T) {
		source := new(MockSource)
		source.On("TickerPage", mock.Anything, api.TickerPageOptions{}).
			Return([]model.Listing{listing("AAPL")}, "page2", nil).Once()
		source.On("TickerPage", mock.Anything, api.TickerPageOptions{Cursor: "page2"}).
			Return([]model.Listing{listing("MSFT")}, "", nil).Once()

		liquid := func(sym string) []model.VolumeBar {
			return sessions(sym, 10, 40_000_000, 100.0)
		}
		source.On("RecentBars", mock.Anything, "AAPL", 20).Return(liquid("AAPL"), nil)
		source.On("RecentBars", mock.Anything, "MSFT", 20).Return(liquid("MSFT"), nil)

		got, err := NewProvider(testConfig(), source, testLogger()).Filtered(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"AAPL", "MSFT"}, got)
		source.AssertExpectations(t)
	})

	t.Run("listing page failure aborts the pass", func(t *testing.T) {
		source := new(MockSource)
		pageErr := errors.New("remote unavailable")
		source.On("TickerPage", mock.Anything, mock.Anything).Return(nil, "", pageErr).Once()

		_, err := NewProvider(testConfig(), source, testLogger()).Filtered(ctx)
		require.ErrorIs(t, err, pageErr)
	})

	t.Run("too few sessions excludes", func(t *testing.T) {
		source := new(MockSource)
		source.On("TickerPage", mock.Anything, mock.Anything).
			Return([]model.Listing{listing("IPO")}, "", nil).Once()
		source.On("RecentBars", mock.Anything, "IPO", 20).
			Return(sessions("IPO", 3, 90_000_000, 50.0), nil)

		got, err := NewProvider(testConfig(), source, testLogger()).Filtered(ctx)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("only the latest sessions are averaged", func(t *testing.T) {
		source := new(MockSource)
		source.On("TickerPage", mock.Anything, mock.Anything).
			Return([]model.Listing{listing("MIX")}, "", nil).Once()

		// Fourteen fetched bars; the four oldest are huge but fall outside
		// the 10-session average, which lands at 10k shares x $10 = $100k.
		bars := append(sessions("MIX", 4, 500_000_000, 100.0),
			sessions("MIX", 10, 10_000, 10.0)...)
		source.On("RecentBars", mock.Anything, "MIX", 20).Return(bars, nil)

		got, err := NewProvider(testConfig(), source, testLogger()).Filtered(ctx)
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestScreenBoundaries(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		volume int64
		close  float64
		want   bool
	}{
		// 1M shares at $10.00 averages exactly $10M: the floor is strict.
		{"dollar volume exactly at the floor", 1_000_000, 10.0, false},
		{"dollar volume just above the floor", 1_000_001, 10.0, true},
		// The price floor is inclusive.
		{"close exactly at the price floor", 50_000_000, 3.0, true},
		{"close just under the price floor", 50_000_000, 2.99, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := new(MockSource)
			source.On("RecentBars", mock.Anything, "SYM", 20).
				Return(sessions("SYM", 10, tc.volume, tc.close), nil)

			p := NewProvider(testConfig(), source, testLogger())
			got, err := p.screen(ctx, listing("SYM"))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 10, cfg.LiquiditySessions)
	require.True(t, cfg.MinDollarVolume.Equal(decimal.NewFromInt(10_000_000)))
	require.True(t, cfg.MinPrice.Equal(decimal.NewFromInt(3)))
}
