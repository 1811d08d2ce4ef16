// Package calendar converts raw UTC timestamps into exchange-local trading
// dates. One Calendar value is injected everywhere a conversion is needed so
// the whole process agrees on what day a bar belongs to.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for trading dates.
const DateLayout = "2006-01-02"

// Calendar resolves trading dates in a single exchange timezone.
// Trading dates are normalized to UTC midnight of the local calendar day.
type Calendar struct {
	loc *time.Location
}

// New loads the named IANA timezone (e.g., "America/New_York").
func New(name string) (*Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return &Calendar{loc: loc}, nil
}

// TradingDate converts a UTC epoch-millisecond bar timestamp to the trading
// date it belongs to. A bar stamped just past a UTC day boundary still lands
// on the exchange-local calendar day.
func (c *Calendar) TradingDate(ms int64) time.Time {
	local := time.UnixMilli(ms).In(c.loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// DateOf returns the trading date containing the given instant.
func (c *Calendar) DateOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return Date(local.Year(), local.Month(), local.Day())
}

// Today returns the current trading date.
func (c *Calendar) Today() time.Time {
	return c.DateOf(time.Now())
}

// PreviousTradingDay returns the last weekday strictly before date.
// Holiday closures are the scheduling collaborator's concern, not ours.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	d := date.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Date builds a UTC-midnight trading date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two times fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// FormatDate renders a trading date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a DateLayout string into a UTC-midnight trading date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
