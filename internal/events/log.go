package events

import (
	"context"
	"log/slog"

	"github.com/cimillas/perishable-market/internal/domain"
)

// LogPublisher records events in the service log. Used when no broker is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	p.logger.InfoContext(ctx, "order_event",
		"type", event.Type,
		"order_id", event.OrderID,
		"from", event.From,
		"status", event.Status,
		"reverted", event.Reverted,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
