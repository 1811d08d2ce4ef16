// Package api provides the resilient REST client for the market data source.
//
// Endpoints used:
//   - /v2/aggs/ticker/{symbol}/range/1/day/{from}/{to} - daily bars
//   - /v3/reference/tickers - active listings (cursor paginated)
//   - /v2/snapshot/locale/us/markets/stocks/tickers - full-market snapshot
//   - /v1/marketstatus/now - session state
//
// Every request is spaced by a global minimum interval and retried under an
// explicit RetryPolicy (exponential backoff with jitter). Long history
// ranges are fetched in chunked windows; bar timestamps are converted to
// exchange-local trading dates through the injected calendar.
package api
