package app

import (
	"context"
	"log/slog"

	"github.com/cimillas/perishable-market/internal/domain"
)

// EventPublisher hands committed order state to downstream collaborators.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }

// publish never fails the caller: the commit already happened.
func publish(ctx context.Context, pub EventPublisher, logger *slog.Logger, event domain.OrderEvent) {
	if err := pub.Publish(ctx, event); err != nil {
		logger.Error("order_event_publish_failed",
			"type", event.Type,
			"order_id", event.OrderID,
			"error", err,
		)
	}
}
