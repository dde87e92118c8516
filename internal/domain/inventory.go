package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
)

// InventoryItem is a provider's discounted, time-limited stock unit. Expiry
// never deletes the record; it only drops out of the orderable set.
type InventoryItem struct {
	ID              string
	ProviderID      string
	CategoryID      string
	Name            string
	Description     string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
	ExpiresAt       time.Time
	Status          ItemStatus
	// Version guards provider edits against lost updates.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Classification is the derived visibility of an item at a given instant.
type Classification string

const (
	ClassActive       Classification = "active"
	ClassExpiringSoon Classification = "expiring_soon"
	ClassExpired      Classification = "expired"
	// ClassUnavailable covers sold or out-of-stock items that have not expired.
	ClassUnavailable Classification = "unavailable"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyOK       Urgency = "ok"
)

// DefaultExpiringSoon is the window before expiry in which an item counts as
// expiring soon.
const DefaultExpiringSoon = 4 * time.Hour

// HoursRemaining is floor((expiresAt - now) / 1h). Negative once expired.
func HoursRemaining(expiresAt, now time.Time) int {
	d := expiresAt.Sub(now)
	h := int(d / time.Hour)
	if d < 0 && d%time.Hour != 0 {
		h--
	}
	return h
}

// UrgencyTier maps whole hours remaining to an urgency bucket.
func UrgencyTier(hoursRemaining int) Urgency {
	switch {
	case hoursRemaining < 2:
		return UrgencyCritical
	case hoursRemaining < 4:
		return UrgencyWarning
	default:
		return UrgencyOK
	}
}

// Expired reports whether the item is past its expiry instant. The boundary
// belongs to the expired side.
func (i InventoryItem) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// Orderable reports whether a customer may put the item in an order right now.
func (i InventoryItem) Orderable(now time.Time) bool {
	return i.Status == ItemStatusAvailable && i.Quantity > 0 && !i.Expired(now)
}

// Classify computes the item's classification. Expiry wins over the stored
// status, so a sold item past its expiry is reported as expired.
func Classify(item InventoryItem, now time.Time, expiringSoon time.Duration) Classification {
	if item.Expired(now) {
		return ClassExpired
	}
	if item.Status == ItemStatusSold || item.Quantity <= 0 {
		return ClassUnavailable
	}
	if expiringSoon <= 0 {
		expiringSoon = DefaultExpiringSoon
	}
	if item.ExpiresAt.Sub(now) < expiringSoon {
		return ClassExpiringSoon
	}
	return ClassActive
}

// InventoryFilter selects which classifications a listing returns.
type InventoryFilter string

const (
	FilterActive       InventoryFilter = "active"
	FilterExpiringSoon InventoryFilter = "expiring-soon"
	FilterExpired      InventoryFilter = "expired"
	FilterUnavailable  InventoryFilter = "unavailable"
	FilterAll          InventoryFilter = "all"
)

// ParseInventoryFilter parses a filter name; empty defaults to active.
func ParseInventoryFilter(s string) (InventoryFilter, bool) {
	switch f := InventoryFilter(s); f {
	case "":
		return FilterActive, true
	case FilterActive, FilterExpiringSoon, FilterExpired, FilterUnavailable, FilterAll:
		return f, true
	default:
		return "", false
	}
}

// Matches reports whether a classification belongs to the filter. The active
// filter is the orderable set, so it includes expiring-soon items.
func (f InventoryFilter) Matches(c Classification) bool {
	switch f {
	case FilterAll:
		return true
	case FilterActive:
		return c == ClassActive || c == ClassExpiringSoon
	case FilterExpiringSoon:
		return c == ClassExpiringSoon
	case FilterExpired:
		return c == ClassExpired
	case FilterUnavailable:
		return c == ClassUnavailable
	default:
		return false
	}
}

// ClassifiedItem is an item together with its derived view at read time.
type ClassifiedItem struct {
	Item           InventoryItem
	Classification Classification
	Urgency        Urgency
	HoursRemaining int
}

func ClassifyItem(item InventoryItem, now time.Time, expiringSoon time.Duration) ClassifiedItem {
	hours := HoursRemaining(item.ExpiresAt, now)
	return ClassifiedItem{
		Item:           item,
		Classification: Classify(item, now, expiringSoon),
		Urgency:        UrgencyTier(hours),
		HoursRemaining: hours,
	}
}
