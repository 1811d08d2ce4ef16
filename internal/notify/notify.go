// Package notify is the outbound boundary for watermark activity. Delivery
// transports live elsewhere; consumers depend on the Notifier interface and
// the default implementation just renders to the log.
package notify

import (
	"context"
	"log/slog"

	"github.com/bobtabor/hve-data/internal/calendar"
	"github.com/bobtabor/hve-data/internal/model"
)

// Notifier receives watermark activity as it happens.
type Notifier interface {
	// LiveHits delivers intraday record-volume hits from the poll loop.
	LiveHits(ctx context.Context, hits []model.LiveHit) error

	// Events delivers watermark changes discovered by an ingestion pass.
	Events(ctx context.Context, events []model.WatermarkEvent) error
}

// LogNotifier renders notifications through slog.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a Notifier that logs every notification.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) LiveHits(_ context.Context, hits []model.LiveHit) error {
	for _, h := range hits {
		n.logger.Info("live volume record",
			"symbol", h.Symbol,
			"kind", h.Kind,
			"observed_volume", h.ObservedVolume,
			"prior_volume", h.ReferenceVolume,
			"prior_date", calendar.FormatDate(h.ReferenceDate),
			"change_pct", h.ChangePct,
		)
	}
	return nil
}

func (n *LogNotifier) Events(_ context.Context, events []model.WatermarkEvent) error {
	for _, e := range events {
		n.logger.Info("new watermark",
			"symbol", e.Symbol,
			"kind", e.Kind,
			"date", calendar.FormatDate(e.Date),
			"volume", e.Volume,
		)
	}
	return nil
}
