package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobtabor/hve-data/internal/model"
)

// PostgresBackend persists watermarks in two tables: one row per symbol in
// watermarks, plus a single-row ingestion_meta scalar. The pool is owned by
// the caller.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresBackend wraps an existing connection pool.
func NewPostgresBackend(pool *pgxpool.Pool, logger *slog.Logger) *PostgresBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBackend{pool: pool, logger: logger}
}

// EnsureSchema creates the tables if they do not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS watermarks (
			symbol      TEXT PRIMARY KEY,
			ever_date   DATE   NOT NULL,
			ever_volume BIGINT NOT NULL,
			year_date   DATE,
			year_volume BIGINT,
			updated_at  BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ingestion_meta (
			id                  SMALLINT PRIMARY KEY CHECK (id = 1),
			last_ingestion_date DATE,
			updated_at          BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_watermarks_ever_date ON watermarks (ever_date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_watermarks_year_date ON watermarks (year_date DESC)`,
	}

	for _, q := range queries {
		if _, err := b.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const upsertSQL = `
	INSERT INTO watermarks (symbol, ever_date, ever_volume, year_date, year_volume, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (symbol) DO UPDATE SET
		ever_date   = EXCLUDED.ever_date,
		ever_volume = EXCLUDED.ever_volume,
		year_date   = EXCLUDED.year_date,
		year_volume = EXCLUDED.year_volume,
		updated_at  = EXCLUDED.updated_at
`

func (b *PostgresBackend) Get(ctx context.Context, symbol string) (model.Watermark, bool, error) {
	var (
		w        model.Watermark
		yearDate *time.Time
		yearVol  *int64
	)

	err := b.pool.QueryRow(ctx,
		`SELECT symbol, ever_date, ever_volume, year_date, year_volume, updated_at
		 FROM watermarks WHERE symbol = $1`, symbol,
	).Scan(&w.Symbol, &w.EverDate, &w.EverVolume, &yearDate, &yearVol, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Watermark{}, false, nil
	}
	if err != nil {
		return model.Watermark{}, false, fmt.Errorf("select watermark %s: %w", symbol, err)
	}

	w.EverDate = w.EverDate.UTC()
	if yearDate != nil {
		w.YearDate = yearDate.UTC()
	}
	if yearVol != nil {
		w.YearVolume = *yearVol
	}
	return w, true, nil
}

func (b *PostgresBackend) Put(ctx context.Context, w model.Watermark) error {
	_, err := b.pool.Exec(ctx, upsertSQL, upsertArgs(w)...)
	if err != nil {
		return fmt.Errorf("upsert watermark %s: %w", w.Symbol, err)
	}
	return nil
}

// PutBatch upserts all records in one round-trip.
func (b *PostgresBackend) PutBatch(ctx context.Context, ws []model.Watermark) error {
	if len(ws) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range ws {
		batch.Queue(upsertSQL, upsertArgs(w)...)
	}

	results := b.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range ws {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch upsert: %w", err)
		}
	}
	return nil
}

func upsertArgs(w model.Watermark) []any {
	var yearDate any
	var yearVol any
	if w.HasYear() {
		yearDate = w.YearDate
		yearVol = w.YearVolume
	}
	return []any{w.Symbol, w.EverDate, w.EverVolume, yearDate, yearVol, w.UpdatedAt}
}

func (b *PostgresBackend) Symbols(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT symbol FROM watermarks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("select symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func (b *PostgresBackend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.pool.QueryRow(ctx, `SELECT COUNT(*) FROM watermarks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count watermarks: %w", err)
	}
	return n, nil
}

const eventsSQL = `
	SELECT symbol, ever_date AS date, ever_volume AS volume, 'Ever' AS kind
	FROM watermarks WHERE ever_date %[1]s $1
	UNION ALL
	SELECT symbol, year_date, year_volume, 'Year'
	FROM watermarks WHERE year_date IS NOT NULL AND year_date %[1]s $1
	ORDER BY date DESC, volume DESC, symbol ASC, kind ASC
`

func (b *PostgresBackend) EventsSince(ctx context.Context, since time.Time) ([]model.WatermarkEvent, error) {
	return b.queryEvents(ctx, fmt.Sprintf(eventsSQL, ">"), since)
}

func (b *PostgresBackend) EventsOn(ctx context.Context, date time.Time) ([]model.WatermarkEvent, error) {
	return b.queryEvents(ctx, fmt.Sprintf(eventsSQL, "="), date)
}

func (b *PostgresBackend) queryEvents(ctx context.Context, sql string, date time.Time) ([]model.WatermarkEvent, error) {
	rows, err := b.pool.Query(ctx, sql, date)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []model.WatermarkEvent
	for rows.Next() {
		var (
			e    model.WatermarkEvent
			kind string
		)
		if err := rows.Scan(&e.Symbol, &e.Date, &e.Volume, &kind); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Date = e.Date.UTC()
		e.Kind = model.Kind(kind)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (b *PostgresBackend) LastIngestion(ctx context.Context) (time.Time, bool, error) {
	var date *time.Time
	err := b.pool.QueryRow(ctx,
		`SELECT last_ingestion_date FROM ingestion_meta WHERE id = 1`,
	).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("select last ingestion: %w", err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return date.UTC(), true, nil
}

func (b *PostgresBackend) SetLastIngestion(ctx context.Context, date time.Time) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO ingestion_meta (id, last_ingestion_date, updated_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET
			last_ingestion_date = EXCLUDED.last_ingestion_date,
			updated_at          = EXCLUDED.updated_at`,
		date, time.Now().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("upsert last ingestion: %w", err)
	}
	return nil
}
