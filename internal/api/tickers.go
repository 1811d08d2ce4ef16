package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bobtabor/hve-data/internal/model"
)

// defaultPageLimit is the largest reference page the source serves.
const defaultPageLimit = 1000

// TickerPage fetches one page of active common-stock listings. The returned
// cursor is empty when no pages remain.
func (c *Client) TickerPage(ctx context.Context, opts TickerPageOptions) ([]model.Listing, string, error) {
	query := url.Values{}
	query.Set("market", "stocks")
	query.Set("type", "CS")
	query.Set("active", "true")
	query.Set("sort", "ticker")

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	query.Set("limit", strconv.Itoa(limit))

	if opts.Exchange != "" {
		query.Set("exchange", opts.Exchange)
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}

	var resp TickersResponse
	if err := c.get(ctx, "/v3/reference/tickers", query, &resp); err != nil {
		return nil, "", fmt.Errorf("get tickers: %w", err)
	}

	listings := make([]model.Listing, 0, len(resp.Results))
	for _, r := range resp.Results {
		listings = append(listings, r.ToListing())
	}

	return listings, nextCursor(resp.NextURL), nil
}

// ListActiveTickers fetches all active listings by following the cursor
// chain until exhausted.
func (c *Client) ListActiveTickers(ctx context.Context, exchange string) ([]model.Listing, error) {
	var all []model.Listing
	opts := TickerPageOptions{Exchange: exchange}

	for {
		page, cursor, err := c.TickerPage(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)

		if cursor == "" {
			break
		}
		opts.Cursor = cursor
	}

	return all, nil
}

// nextCursor extracts the continuation cursor from a next_url link.
func nextCursor(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}
