package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryInfo is opaque to the core apart from the address being required.
type DeliveryInfo struct {
	Address       string
	Notes         string
	PaymentMethod string
}

// Order is a customer's purchase from a single provider. Status mirrors the
// latest StatusLog entry and is only written together with a new log row.
type Order struct {
	ID               string
	CustomerID       string
	ProviderID       string
	Status           OrderStatus
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	ServiceFee       decimal.Decimal
	TotalAmount      decimal.Decimal
	Delivery         DeliveryInfo
	EstimatedMinutes *int
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem freezes the unit price charged at checkout. It is never re-read
// from the catalog afterwards.
type OrderItem struct {
	ID        string
	OrderID   string
	ItemID    string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (oi OrderItem) LineTotal() decimal.Decimal {
	return oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

// StatusLog is one append-only audit entry. Seq breaks ties between entries
// sharing a timestamp.
type StatusLog struct {
	Seq       int64
	OrderID   string
	Status    OrderStatus
	Notes     string
	CreatedAt time.Time
}

// OrderDetail is an order with its lines and full status history, oldest first.
type OrderDetail struct {
	Order Order
	Items []OrderItem
	Logs  []StatusLog
}

// Fees are applied on top of the subtotal at checkout.
type Fees struct {
	DeliveryFee       decimal.Decimal
	ServiceFeePercent decimal.Decimal
}

// Totals computes the monetary breakdown for a subtotal. The total is always
// derived, never supplied by a caller.
func (f Fees) Totals(subtotal decimal.Decimal) (delivery, service, total decimal.Decimal) {
	delivery = RoundMoney(f.DeliveryFee)
	service = RoundMoney(subtotal.Mul(f.ServiceFeePercent).Div(decimal.NewFromInt(100)))
	total = subtotal.Add(delivery).Add(service)
	return delivery, service, total
}

// PriorStatus returns the status the order would revert to on go-back: the
// second most recent log entry. Logs must be oldest first.
func PriorStatus(logs []StatusLog) (OrderStatus, error) {
	if len(logs) < 2 {
		return "", ErrNoPriorStatus
	}
	return logs[len(logs)-2].Status, nil
}
