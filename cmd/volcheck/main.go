// volcheck is a connectivity diagnostic: it checks market status and
// prints the highest-volume symbols from the current snapshot.
//
// Usage: go run ./cmd/volcheck --config configs/tracker.local.yaml [-top 10]
//
// Required environment variables (or config values):
//
//	HVE_API_KEY - market data API key
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bobtabor/hve-data/internal/api"
	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/config"
	"github.com/bobtabor/hve-data/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/tracker.local.yaml", "path to config file")
	top := flag.Int("top", 10, "number of symbols to print")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

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
		<-sigCh
		cancel()
	}()

	cal, err := calendar.New(cfg.API.Calendar)
	if err != nil {
		logger.Error("failed to load exchange calendar", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cal,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithMinInterval(cfg.API.MinRequestInterval),
	)

	status, err := client.GetMarketStatus(ctx)
	if err != nil {
		logger.Error("market status check failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("[STATUS] open=%t server_time=%s\n", status.Open, status.ServerTime.Format("2006-01-02 15:04:05 MST"))

	snap, err := client.FetchSnapshot(ctx)
	if err != nil {
		logger.Error("snapshot fetch failed", "error", err)
		os.Exit(1)
	}

	entries := make([]model.SnapshotEntry, 0, len(snap))
	for _, e := range snap {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Volume != entries[j].Volume {
			return entries[i].Volume > entries[j].Volume
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	if *top < len(entries) {
		entries = entries[:*top]
	}
	for _, e := range entries {
		fmt.Printf("[VOLUME] %-8s volume=%d change=%+.2f%%\n", e.Symbol, e.Volume, e.ChangePct)
	}
	fmt.Printf("%d symbols in snapshot\n", len(snap))
}
