package api

import (
	"context"
	"fmt"

	"github.com/bobtabor/hve-data/internal/model"
)

// FetchSnapshot fetches the full-market snapshot: accumulated session volume
// and percent change for every symbol the source covers, keyed by symbol.
func (c *Client) FetchSnapshot(ctx context.Context) (map[string]model.SnapshotEntry, error) {
	var resp SnapshotResponse
	if err := c.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers", nil, &resp); err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	entries := make(map[string]model.SnapshotEntry, len(resp.Tickers))
	for _, s := range resp.Tickers {
		entries[s.Ticker] = s.ToEntry()
	}

	return entries, nil
}
