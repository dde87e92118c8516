package domain

import "github.com/shopspring/decimal"

// CartLine is held by the client until checkout. Price is the discounted
// price the customer saw when adding the item.
type CartLine struct {
	ItemID   string
	Quantity int
	Price    decimal.Decimal
}

type Verdict string

const (
	VerdictOK     Verdict = "ok"
	VerdictRemove Verdict = "remove"
	VerdictAdjust Verdict = "adjust"
)

type Reason string

const (
	ReasonItemUnavailable      Reason = "item_unavailable"
	ReasonQuantityInsufficient Reason = "quantity_insufficient"
	ReasonPriceDrifted         Reason = "price_drifted"
	ReasonInvalidQuantity      Reason = "invalid_quantity"
	ReasonDuplicateLine        Reason = "duplicate_line"
)

// LineReport is the validator's verdict for one cart line. For ADJUST the
// Adjusted* fields carry the values the customer has to re-confirm.
type LineReport struct {
	Line              CartLine
	Verdict           Verdict
	Reasons           []Reason
	Message           string
	ProviderID        string
	AdjustedQuantity  int
	AdjustedPrice     decimal.Decimal
	AvailableQuantity int
}

// ValidationReport is read-only output; producing it never mutates inventory.
type ValidationReport struct {
	Valid          bool
	Lines          []LineReport
	Subtotal       decimal.Decimal
	ProviderID     string
	MixedProviders bool
}
