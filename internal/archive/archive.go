// Package archive persists raw fetched bar history to flat files so a
// bootstrap's network cost is not thrown away. One file per symbol in the
// configured format.
package archive

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
)

// Record is the flat-file row shape, independent of the wire types.
type Record struct {
	Symbol      string  `json:"symbol" parquet:"symbol"`
	Date        string  `json:"date" parquet:"date"`
	TimestampMS int64   `json:"t" parquet:"t"`
	Open        float64 `json:"o" parquet:"o"`
	Close       float64 `json:"c" parquet:"c"`
	Volume      int64   `json:"v" parquet:"v"`
}

// Saver writes one symbol's records to a path in a specific format.
type Saver interface {
	Save(records []Record, path string) error
	Extension() string
}

// NewSaver selects a Saver by format name (csv, json, parquet).
func NewSaver(format string) (Saver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	default:
		return nil, fmt.Errorf("unsupported archive format %q (use csv, json or parquet)", format)
	}
}

// Archiver writes per-symbol history files under one directory.
type Archiver struct {
	dir   string
	saver Saver
}

// NewArchiver creates the directory if needed and binds the format.
func NewArchiver(dir, format string) (*Archiver, error) {
	saver, err := NewSaver(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archiver{dir: dir, saver: saver}, nil
}

// Write stores one symbol's bars, replacing any previous file.
func (a *Archiver) Write(symbol string, bars []model.VolumeBar) error {
	records := make([]Record, len(bars))
	for i, b := range bars {
		records[i] = Record{
			Symbol:      b.Symbol,
			Date:        calendar.FormatDate(b.Date),
			TimestampMS: b.TimestampMS,
			Open:        b.Open,
			Close:       b.Close,
			Volume:      b.Volume,
		}
	}
	path := filepath.Join(a.dir, symbol+"."+a.saver.Extension())
	if err := a.saver.Save(records, path); err != nil {
		return fmt.Errorf("archive %s: %w", symbol, err)
	}
	return nil
}

// Path returns where a symbol's archive file lives.
func (a *Archiver) Path(symbol string) string {
	return filepath.Join(a.dir, symbol+"."+a.saver.Extension())
}

// CSVSaver writes records as CSV with a header row.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(records []Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"symbol", "date", "t", "o", "c", "v"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{
			r.Symbol,
			r.Date,
			strconv.FormatInt(r.TimestampMS, 10),
			floatStr(r.Open),
			floatStr(r.Close),
			strconv.FormatInt(r.Volume, 10),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// JSONSaver writes records as an indented JSON array.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(records []Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ParquetSaver writes records as a Parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(records []Record, path string) error {
	return parquet.WriteFile(path, records)
}
