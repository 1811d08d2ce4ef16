package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/archive"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/config"
	"github.com/bobtabor/hve-data/internal/database"
	"github.com/bobtabor/hve-data/internal/fanout"
	"github.com/bobtabor/hve-data/internal/ingest"
	"github.com/bobtabor/hve-data/internal/notify"
	"github.com/bobtabor/hve-data/internal/poll"
	"github.com/bobtabor/hve-data/internal/universe"
	"github.com/bobtabor/hve-data/internal/version"
	"github.com/bobtabor/hve-data/internal/watermark"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; the real environment wins when both define a key.
	_ = godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.BaseURL,
		"backend", cfg.Database.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
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

	// Select the watermark backend
	var backend watermark.Backend
	var pool *pgxpool.Pool
	switch cfg.Database.Backend {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database.Postgres)
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
		logger.Info("database connected")
	default:
		logger.Warn("using in-memory watermark backend, state is lost on exit")
		backend = watermark.NewMemoryBackend()
	}

	store := watermark.NewStore(backend, logger)

	// Create API client
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

	// Check market status
	logger.Info("checking market status")
	status, err := client.GetMarketStatus(ctx)
	if err != nil {
		logger.Error("failed to get market status", "error", err)
		os.Exit(1)
	}
	logger.Info("market status",
		"open", status.Open,
		"server_time", status.ServerTime,
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

	notifier := notify.NewLogNotifier(logger)

	pipeline := ingest.New(ingest.Config{
		HistoryYears: cfg.History.Years,
		Fetch:        fetchCfg,
	}, client, store, provider, cal, notifier, logger)

	if cfg.Archive.Enabled {
		archiver, err := archive.NewArchiver(cfg.Archive.Dir, cfg.Archive.Format)
		if err != nil {
			logger.Error("failed to create archiver", "error", err)
			os.Exit(1)
		}
		pipeline.SetArchiver(archiver)
		logger.Info("history archival enabled",
			"dir", cfg.Archive.Dir,
			"format", cfg.Archive.Format,
		)
	}

	// Start health server early so long backfills can be monitored
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(pool, store, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Run the daily ingestion pass (bootstrap or catch-up)
	logger.Info("running ingestion pass")
	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("ingestion pass failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion pass complete",
		"mode", report.Mode,
		"symbols", report.Symbols,
		"seeded", report.Seeded,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"events", report.Events,
		"elapsed", report.Elapsed,
	)

	// Validated at load time
	strictness, _ := watermark.ParseStrictness(cfg.Watermarks.YearStrictness)

	poller := poll.New(poll.Config{
		Interval:   cfg.Poller.Interval,
		Timeout:    cfg.Poller.Timeout,
		Strictness: strictness,
	}, client, client, store, poll.StatusGate(client), notifier, cal, logger)

	if err := poller.Start(ctx); err != nil {
		logger.Error("failed to start live poller", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		poller.Stop(shutdownCtx)
	}()

	logger.Info("tracker running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("tracker stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(pool *pgxpool.Pool, store *watermark.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		} else {
			health.Components["backend"] = "memory"
		}

		// Check watermark store
		stats, err := store.Stats(ctx)
		if err != nil {
			health.Status = "unhealthy"
			health.Components["watermarks"] = map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			}
		} else {
			comp := map[string]interface{}{
				"symbols": stats.Symbols,
			}
			if !stats.LastIngestion.IsZero() {
				comp["last_ingestion"] = calendar.FormatDate(stats.LastIngestion)
			}
			health.Components["watermarks"] = comp
			if stats.Symbols == 0 {
				health.Status = "degraded"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/watermarks", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		symbols, err := store.Symbols(ctx)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Limit to first 100 for debugging
		showing := symbols
		limit := 100
		if len(showing) > limit {
			showing = showing[:limit]
		}

		type markRow struct {
			Symbol     string `json:"symbol"`
			EverDate   string `json:"ever_date"`
			EverVolume int64  `json:"ever_volume"`
			YearDate   string `json:"year_date,omitempty"`
			YearVolume int64  `json:"year_volume,omitempty"`
		}

		rows := make([]markRow, 0, len(showing))
		for _, sym := range showing {
			mark, ok, err := store.Get(ctx, sym)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !ok {
				continue
			}
			row := markRow{
				Symbol:     mark.Symbol,
				EverDate:   calendar.FormatDate(mark.EverDate),
				EverVolume: mark.EverVolume,
			}
			if mark.HasYear() {
				row.YearDate = calendar.FormatDate(mark.YearDate)
				row.YearVolume = mark.YearVolume
			}
			rows = append(rows, row)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":      len(symbols),
			"showing":    len(rows),
			"watermarks": rows,
		})
	})

	return mux
}
