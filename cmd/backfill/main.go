// backfill runs one ingestion pass and exits: a bootstrap from deep
// history when the store is empty (or -full is given), otherwise a
// catch-up to the last complete trading day.
//
// Usage: go run ./cmd/backfill --config configs/tracker.local.yaml [-full]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/archive"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/config"
	"github.com/bobtabor/hve-data/internal/database"
	"github.com/bobtabor/hve-data/internal/fanout"
	"github.com/bobtabor/hve-data/internal/ingest"
	"github.com/bobtabor/hve-data/internal/notify"
	"github.com/bobtabor/hve-data/internal/universe"
	"github.com/bobtabor/hve-data/internal/version"
	"github.com/bobtabor/hve-data/internal/watermark"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
	full := flag.Bool("full", false, "re-seed every symbol from deep history even if records exist")
	flag.Parse()

	// .env is optional; the real environment wins when both define a key.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting backfill",
		"version", version.Version,
		"config", *configPath,
		"full", *full,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cal, err := calendar.New(cfg.API.Calendar)
	if err != nil {
		logger.Error("failed to load exchange calendar", "error", err)
		os.Exit(1)
	}

	var backend watermark.Backend
	switch cfg.Database.Backend {
	case "postgres":
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := watermark.NewPostgresBackend(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		backend = pg
	default:
		logger.Warn("using in-memory watermark backend, backfill results are discarded on exit")
		backend = watermark.NewMemoryBackend()
	}

	store := watermark.NewStore(backend, logger)

	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cal,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithMinInterval(cfg.API.MinRequestInterval),
		api.WithChunkDays(cfg.API.ChunkDays),
	)

	fetchCfg := fanout.Config{
		Workers:   cfg.Fetch.Workers,
		BatchSize: cfg.Fetch.BatchSize,
	}

	provider := universe.NewProvider(universe.Config{
		Exchange:          cfg.Universe.Exchange,
		LiquiditySessions: cfg.Universe.LiquiditySessions,
		MinDollarVolume:   cfg.Universe.MinDollarVolume,
		MinPrice:          cfg.Universe.MinPrice,
		Fetch:             fetchCfg,
	}, client, logger)

	pipeline := ingest.New(ingest.Config{
		HistoryYears:   cfg.History.Years,
		ForceBootstrap: *full,
		Fetch:          fetchCfg,
	}, client, store, provider, cal, notify.NewLogNotifier(logger), logger)

	if cfg.Archive.Enabled {
		archiver, err := archive.NewArchiver(cfg.Archive.Dir, cfg.Archive.Format)
		if err != nil {
			logger.Error("failed to create archiver", "error", err)
			os.Exit(1)
		}
		pipeline.SetArchiver(archiver)
	}

	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("run:     %s\n", report.RunID)
	fmt.Printf("mode:    %s\n", report.Mode)
	fmt.Printf("symbols: %d\n", report.Symbols)
	fmt.Printf("seeded:  %d\n", report.Seeded)
	fmt.Printf("updated: %d\n", report.Updated)
	fmt.Printf("skipped: %d\n", report.Skipped)
	fmt.Printf("events:  %d\n", report.Events)
	fmt.Printf("elapsed: %s\n", report.Elapsed)
}
