package domain

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusAccepted       OrderStatus = "ACCEPTED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	StatusInTransit      OrderStatus = "IN_TRANSIT"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

type statusInfo struct {
	label string
	next  []OrderStatus
}

// statusTable is the only place transitions are defined. Validation and the
// action labels shown to clients both read from it.
//
// DELIVERED -> CANCELLED and CANCELLED -> PENDING/ACCEPTED (restore) are
// unusual but intentional edges.
var statusTable = map[OrderStatus]statusInfo{
	StatusPending:        {label: "Pending", next: []OrderStatus{StatusAccepted, StatusCancelled}},
	StatusAccepted:       {label: "Accepted", next: []OrderStatus{StatusPreparing, StatusCancelled}},
	StatusPreparing:      {label: "Preparing", next: []OrderStatus{StatusReadyForPickup, StatusCancelled}},
	StatusReadyForPickup: {label: "Ready for pickup", next: []OrderStatus{StatusInTransit, StatusCancelled}},
	StatusInTransit:      {label: "In transit", next: []OrderStatus{StatusDelivered, StatusCancelled}},
	StatusDelivered:      {label: "Delivered", next: []OrderStatus{StatusCancelled}},
	StatusCancelled:      {label: "Cancelled", next: []OrderStatus{StatusPending, StatusAccepted}},
}

// ParseOrderStatus validates a wire status name.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := statusTable[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Label is the human readable name of the status.
func (s OrderStatus) Label() string {
	return statusTable[s].label
}

// AllowedNext returns a copy of the statuses reachable from s by Advance.
func AllowedNext(s OrderStatus) []OrderStatus {
	next := statusTable[s].next
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether (from, to) is an edge of the status table.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range statusTable[from].next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s only leaves through a special edge
// (cancellation of a delivered order, or restore of a cancelled one).
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
