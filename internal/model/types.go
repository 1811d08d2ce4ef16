package model

import "time"

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// VolumeBar is one daily aggregate bar for a symbol. Immutable once fetched.
type VolumeBar struct {
	Symbol      string    // Ticker symbol (e.g., "AAPL")
	Date        time.Time // Exchange-local trading date, UTC midnight
	TimestampMS int64     // Raw bar timestamp (ms since epoch, UTC)
	Open        float64   // Opening price
	Close       float64   // Closing price
	Volume      int64     // Share volume for the session
}

// Listing is one entry from the reference tickers endpoint.
type Listing struct {
	Ticker   string // Ticker symbol
	Name     string // Company name
	Exchange string // Primary exchange MIC (e.g., "XNAS")
	Type     string // Security type (e.g., "CS")
	Active   bool   // Currently listed
}

// SnapshotEntry is one symbol's slice of a full-market snapshot.
type SnapshotEntry struct {
	Symbol    string  // Ticker symbol
	Volume    int64   // Accumulated volume for the current session
	ChangePct float64 // Today's percent change from previous close
}

// -----------------------------------------------------------------------------
// Watermark Types
// -----------------------------------------------------------------------------

// Watermark holds the volume high-water marks for one symbol.
// A zero time.Time means the field is unset. EverVolume >= YearVolume
// holds whenever the record has been written by the store.
type Watermark struct {
	Symbol     string    // Primary key
	EverDate   time.Time // Date of the all-time maximum single-day volume
	EverVolume int64     // All-time maximum single-day volume
	YearDate   time.Time // Date of the trailing-365-day maximum
	YearVolume int64     // Trailing-365-day maximum single-day volume
	UpdatedAt  int64     // Last write (µs since epoch)
}

// HasYear reports whether the year watermark is set.
func (w Watermark) HasYear() bool {
	return !w.YearDate.IsZero()
}

// Observation is one (symbol, date, volume) data point applied to the store.
type Observation struct {
	Symbol string    // Ticker symbol
	Date   time.Time // Trading date, UTC midnight
	Volume int64     // Observed single-day volume
}

// Kind labels which watermark an event or hit refers to.
type Kind string

const (
	KindEver Kind = "Ever" // All-time watermark
	KindYear Kind = "Year" // Trailing-365-day watermark
)

// WatermarkEvent is one watermark entry surfaced by the event queries,
// consumed by the notification collaborator after batch passes.
type WatermarkEvent struct {
	Symbol string    // Ticker symbol
	Date   time.Time // Date of the watermark
	Volume int64     // Watermark volume
	Kind   Kind      // Ever or Year
}

// LiveHit pairs a live observation with the watermark it displaced,
// consumed by the notification collaborator during polling.
type LiveHit struct {
	Symbol          string    // Ticker symbol
	ReferenceDate   time.Time // Date of the prior watermark
	ReferenceVolume int64     // Prior watermark volume (0 for a first record)
	ObservedVolume  int64     // Volume that set the new mark
	ChangePct       float64   // Today's percent price change, from the snapshot
	Kind            Kind      // Which watermark was beaten
}
