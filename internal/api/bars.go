package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
)

// maxAggLimit is the source's row cap per aggregates request.
const maxAggLimit = 50000

// FetchHistory fetches daily bars for symbol over [from, to] inclusive,
// ascending by trading date. Ranges longer than the client's chunk size are
// split into consecutive windows to stay under the source's row caps.
//
// If a later window fails after earlier ones succeeded, the bars fetched so
// far are returned together with an error wrapping ErrPartialHistory, so
// callers can keep the prefix or discard it. A failure on the first window
// returns no bars.
func (c *Client) FetchHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.VolumeBar, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("fetch history %s: to %s before from %s",
			symbol, calendar.FormatDate(to), calendar.FormatDate(from))
	}

	var bars []model.VolumeBar

	for start := from; !start.After(to); {
		end := start.AddDate(0, 0, c.chunkDays-1)
		if end.After(to) {
			end = to
		}

		chunk, err := c.fetchAggs(ctx, symbol, start, end)
		if err != nil {
			if len(bars) == 0 {
				return nil, err
			}
			return bars, fmt.Errorf("%w: %s from %s: %w",
				ErrPartialHistory, symbol, calendar.FormatDate(start), err)
		}
		bars = append(bars, chunk...)

		start = end.AddDate(0, 0, 1)
	}

	return bars, nil
}

// RecentBars fetches the bars covering the most recent calendar days, used
// for liquidity screens that only need a handful of sessions.
func (c *Client) RecentBars(ctx context.Context, symbol string, days int) ([]model.VolumeBar, error) {
	to := c.cal.Today()
	from := to.AddDate(0, 0, -days)
	return c.FetchHistory(ctx, symbol, from, to)
}

// fetchAggs fetches one window of daily aggregates.
func (c *Client) fetchAggs(ctx context.Context, symbol string, from, to time.Time) ([]model.VolumeBar, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(symbol), calendar.FormatDate(from), calendar.FormatDate(to))

	query := url.Values{}
	query.Set("adjusted", "true")
	query.Set("sort", "asc")
	query.Set("limit", strconv.Itoa(maxAggLimit))

	var resp AggsResponse
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get aggs %s: %w", symbol, err)
	}

	bars := make([]model.VolumeBar, 0, len(resp.Results))
	for _, r := range resp.Results {
		bars = append(bars, r.ToBar(symbol, c.cal))
	}

	return bars, nil
}
