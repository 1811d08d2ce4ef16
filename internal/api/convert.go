package api

import (
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
)

// ToBar converts an aggregate row to a model bar. The trading date is
// derived from the bar timestamp through the exchange calendar, not from
// the UTC day of the timestamp.
func (b AggBar) ToBar(symbol string, cal *calendar.Calendar) model.VolumeBar {
	return model.VolumeBar{
		Symbol:      symbol,
		Date:        cal.TradingDate(b.Timestamp),
		TimestampMS: b.Timestamp,
		Open:        b.Open,
		Close:       b.Close,
		Volume:      int64(b.Volume),
	}
}

// ToListing converts a reference ticker row to a model listing.
func (t APITicker) ToListing() model.Listing {
	return model.Listing{
		Ticker:   t.Ticker,
		Name:     t.Name,
		Exchange: t.PrimaryExchange,
		Type:     t.Type,
		Active:   t.Active,
	}
}

// ToEntry converts a snapshot row to a model snapshot entry.
func (s APISnapshot) ToEntry() model.SnapshotEntry {
	return model.SnapshotEntry{
		Symbol:    s.Ticker,
		Volume:    int64(s.Day.Volume),
		ChangePct: s.TodaysChangePerc,
	}
}
