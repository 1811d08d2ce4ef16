package model

import (
	"testing"
	"time"
)

// TestModelTypes validates that model types carry their fields correctly.
func TestModelTypes(t *testing.T) {
	t.Run("VolumeBar", func(t *testing.T) {
		b := VolumeBar{
			Symbol:      "AAPL",
			Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			TimestampMS: 1748836800000,
			Open:        201.35,
			Close:       203.27,
			Volume:      35423294,
		}

		if b.Symbol != "AAPL" {
			t.Errorf("Symbol = %q, want %q", b.Symbol, "AAPL")
		}
		if b.Volume != 35423294 {
			t.Errorf("Volume = %d, want %d", b.Volume, 35423294)
		}
	})

	t.Run("Watermark", func(t *testing.T) {
		w := Watermark{
			Symbol:     "AAPL",
			EverDate:   time.Date(2020, 3, 13, 0, 0, 0, 0, time.UTC),
			EverVolume: 418474000,
			YearDate:   time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC),
			YearVolume: 160466000,
			UpdatedAt:  1748836800000000,
		}

		if w.EverVolume < w.YearVolume {
			t.Errorf("EverVolume = %d < YearVolume = %d", w.EverVolume, w.YearVolume)
		}
		if !w.HasYear() {
			t.Error("HasYear() = false, want true")
		}
	})

	t.Run("WatermarkHasYearUnset", func(t *testing.T) {
		w := Watermark{
			Symbol:     "NEWCO",
			EverDate:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			EverVolume: 1000,
		}

		if w.HasYear() {
			t.Error("HasYear() = true for zero YearDate, want false")
		}
	})

	t.Run("Kind", func(t *testing.T) {
		if KindEver != "Ever" {
			t.Errorf("KindEver = %q, want %q", KindEver, "Ever")
		}
		if KindYear != "Year" {
			t.Errorf("KindYear = %q, want %q", KindYear, "Year")
		}
	})
}
