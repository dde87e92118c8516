package domain

import "github.com/shopspring/decimal"

// ValidatePrices enforces 0 < discounted <= original with at most cent
// precision on both values.
func ValidatePrices(original, discounted decimal.Decimal) error {
	if !original.IsPositive() || !discounted.IsPositive() {
		return ErrInvalidPrice
	}
	if !isCents(original) || !isCents(discounted) {
		return ErrInvalidPrice
	}
	if discounted.GreaterThan(original) {
		return ErrInvalidPrice
	}
	return nil
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
