package domain

import "time"

type OrderEventType string

const (
	EventOrderCreated       OrderEventType = "order.created"
	EventOrderStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent is emitted after a commit so collaborators (notifications,
// dispatch, payments) can react. The core never waits on them.
type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	ProviderID string         `json:"provider_id"`
	From       OrderStatus    `json:"from,omitempty"`
	Status     OrderStatus    `json:"status"`
	Reverted   bool           `json:"reverted,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
