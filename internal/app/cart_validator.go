package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/clock"
	"github.com/cimillas/perishable-market/internal/domain"
)

// ItemReader is the read side the validator needs. Missing ids are simply
// absent from the returned map.
type ItemReader interface {
	GetItems(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error)
}

// CartValidator re-checks a client-held cart against live inventory. It never
// writes, so it can run without holding locks during user think-time.
type CartValidator struct {
	items ItemReader
	clock clock.Clock
}

func NewCartValidator(items ItemReader, clk clock.Clock) *CartValidator {
	return &CartValidator{items: items, clock: clk}
}

// Validate checks lines at the current instant.
func (v *CartValidator) Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidationReport, error) {
	return v.ValidateAt(ctx, lines, v.clock.Now())
}

func (v *CartValidator) ValidateAt(ctx context.Context, lines []domain.CartLine, now time.Time) (domain.ValidationReport, error) {
	if len(lines) == 0 {
		return domain.ValidationReport{}, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ItemID != "" {
			ids = append(ids, line.ItemID)
		}
	}
	live, err := v.items.GetItems(ctx, ids)
	if err != nil {
		return domain.ValidationReport{}, err
	}

	report := domain.ValidationReport{
		Valid:    true,
		Lines:    make([]domain.LineReport, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	seen := make(map[string]bool, len(lines))
	providers := make(map[string]bool)

	for _, line := range lines {
		lr := checkLine(line, live, seen, now)

		if lr.Verdict != domain.VerdictOK {
			report.Valid = false
		}
		if lr.Verdict != domain.VerdictRemove {
			providers[lr.ProviderID] = true
			qty := decimal.NewFromInt(int64(lr.AdjustedQuantity))
			report.Subtotal = report.Subtotal.Add(lr.AdjustedPrice.Mul(qty))
		}
		report.Lines = append(report.Lines, lr)
	}

	switch len(providers) {
	case 0:
	case 1:
		for id := range providers {
			report.ProviderID = id
		}
	default:
		report.MixedProviders = true
		report.Valid = false
	}
	return report, nil
}

func checkLine(line domain.CartLine, live map[string]domain.InventoryItem, seen map[string]bool, now time.Time) domain.LineReport {
	lr := domain.LineReport{Line: line}

	remove := func(reason domain.Reason, msg string) domain.LineReport {
		lr.Verdict = domain.VerdictRemove
		lr.Reasons = []domain.Reason{reason}
		lr.Message = msg
		return lr
	}

	if line.Quantity <= 0 {
		return remove(domain.ReasonInvalidQuantity, "quantity must be at least 1")
	}
	item, ok := live[line.ItemID]
	if !ok {
		return remove(domain.ReasonItemUnavailable, "item no longer exists")
	}
	// Keyed on the stored id: the reader may resolve several spellings of
	// one id to the same row.
	if seen[item.ID] {
		return remove(domain.ReasonDuplicateLine, "item already appears earlier in the cart")
	}
	seen[item.ID] = true
	lr.ProviderID = item.ProviderID
	lr.AvailableQuantity = item.Quantity

	switch {
	case item.Expired(now):
		return remove(domain.ReasonItemUnavailable, "item has expired")
	case item.Status == domain.ItemStatusSold:
		return remove(domain.ReasonItemUnavailable, "item has been sold")
	case item.Quantity <= 0:
		return remove(domain.ReasonItemUnavailable, "item is out of stock")
	}

	lr.Verdict = domain.VerdictOK
	lr.AdjustedQuantity = line.Quantity
	lr.AdjustedPrice = item.DiscountedPrice

	var msgs []string
	if line.Quantity > item.Quantity {
		lr.AdjustedQuantity = item.Quantity
		lr.Reasons = append(lr.Reasons, domain.ReasonQuantityInsufficient)
		msgs = append(msgs, fmt.Sprintf("only %d left", item.Quantity))
	}
	if !item.DiscountedPrice.Equal(line.Price) {
		lr.Reasons = append(lr.Reasons, domain.ReasonPriceDrifted)
		msgs = append(msgs, fmt.Sprintf("price changed from %s to %s",
			line.Price.StringFixed(2), item.DiscountedPrice.StringFixed(2)))
	}
	if len(lr.Reasons) > 0 {
		lr.Verdict = domain.VerdictAdjust
		lr.Message = strings.Join(msgs, "; ")
	}
	return lr
}
