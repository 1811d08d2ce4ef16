package api

// AggBar is one daily aggregate row from GET /v2/aggs/ticker/{symbol}/range/1/day/{from}/{to}.
type AggBar struct {
	Timestamp    int64   `json:"t"`  // Bar start (ms since epoch, UTC)
	Open         float64 `json:"o"`  // Opening price
	High         float64 `json:"h"`  // Session high
	Low          float64 `json:"l"`  // Session low
	Close        float64 `json:"c"`  // Closing price
	Volume       float64 `json:"v"`  // Share volume (delivered as a float)
	VWAP         float64 `json:"vw"` // Volume-weighted average price
	Transactions int64   `json:"n"`  // Trade count
}

// AggsResponse from GET /v2/aggs/ticker/...
type AggsResponse struct {
	Ticker       string   `json:"ticker"`
	QueryCount   int      `json:"queryCount"`
	ResultsCount int      `json:"resultsCount"`
	Adjusted     bool     `json:"adjusted"`
	Results      []AggBar `json:"results"`
	Status       string   `json:"status"`
}

// APITicker is one listing from GET /v3/reference/tickers.
type APITicker struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"name"`
	Market          string `json:"market"`
	Locale          string `json:"locale"`
	PrimaryExchange string `json:"primary_exchange"`
	Type            string `json:"type"`
	Active          bool   `json:"active"`
	CurrencyName    string `json:"currency_name"`
}

// TickersResponse from GET /v3/reference/tickers.
type TickersResponse struct {
	Results []APITicker `json:"results"`
	Status  string      `json:"status"`
	Count   int         `json:"count"`
	NextURL string      `json:"next_url"`
}

// SnapshotDay carries the current session's aggregates inside a snapshot row.
type SnapshotDay struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// APISnapshot is one symbol's row from the full-market snapshot.
type APISnapshot struct {
	Ticker           string      `json:"ticker"`
	Day              SnapshotDay `json:"day"`
	TodaysChangePerc float64     `json:"todaysChangePerc"`
	Updated          int64       `json:"updated"`
}

// SnapshotResponse from GET /v2/snapshot/locale/us/markets/stocks/tickers.
type SnapshotResponse struct {
	Tickers []APISnapshot `json:"tickers"`
	Status  string        `json:"status"`
}

// MarketStatusResponse from GET /v1/marketstatus/now.
type MarketStatusResponse struct {
	Market     string `json:"market"` // "open", "closed", "extended-hours"
	ServerTime string `json:"serverTime"`
	Exchanges  struct {
		Nasdaq string `json:"nasdaq"`
		NYSE   string `json:"nyse"`
		OTC    string `json:"otc"`
	} `json:"exchanges"`
}

// TickerPageOptions configures one TickerPage request.
type TickerPageOptions struct {
	Exchange string // Primary exchange MIC filter, empty for all
	Limit    int    // Page size, defaults to 1000 (the source maximum)
	Cursor   string // Continuation cursor from the previous page
}
