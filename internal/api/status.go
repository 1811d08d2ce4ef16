package api

import (
	"context"
	"fmt"
	"time"
)

// MarketStatus is the parsed market session state.
type MarketStatus struct {
	Open       bool      // Regular session currently trading
	ServerTime time.Time // Source server clock, zero if unparseable
}

// GetMarketStatus fetches the current market session state.
func (c *Client) GetMarketStatus(ctx context.Context) (*MarketStatus, error) {
	var resp MarketStatusResponse
	if err := c.get(ctx, "/v1/marketstatus/now", nil, &resp); err != nil {
		return nil, fmt.Errorf("get market status: %w", err)
	}

	st := &MarketStatus{Open: resp.Market == "open"}
	if t, err := time.Parse(time.RFC3339, resp.ServerTime); err == nil {
		st.ServerTime = t
	}

	return st, nil
}
