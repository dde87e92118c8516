package domain

import "errors"

var (
	ErrInvalidID               = errors.New("invalid id")
	ErrForbidden               = errors.New("forbidden")
	ErrItemNotFound            = errors.New("item not found")
	ErrInvalidPrice            = errors.New("invalid price")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidExpiry           = errors.New("invalid expiry")
	ErrAlreadySold             = errors.New("item already sold")
	ErrReferencedByOrders      = errors.New("item referenced by orders")
	ErrVersionConflict         = errors.New("item modified concurrently")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrMixedProviders          = errors.New("cart lines belong to different providers")
	ErrDeliveryAddressRequired = errors.New("delivery address required")
	ErrStockChanged            = errors.New("stock changed")
	ErrIdempotencyConflict     = errors.New("idempotency conflict")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatus           = errors.New("invalid status")
	ErrIllegalTransition       = errors.New("illegal status transition")
	ErrStatusConflict          = errors.New("order status changed")
	ErrNoPriorStatus           = errors.New("no prior status")
	ErrInvalidEstimate         = errors.New("invalid estimated minutes")
)

var (
	ErrInvalidFilter = errors.New("invalid inventory filter")
	// ErrCartInvalid means the cart report has lines the customer must
	// re-confirm; nothing was written.
	ErrCartInvalid = errors.New("cart requires re-confirmation")
)
