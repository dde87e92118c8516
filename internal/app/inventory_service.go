package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/clock"
	"github.com/cimillas/perishable-market/internal/domain"
	"github.com/cimillas/perishable-market/internal/obs"
)

// ItemQuery narrows a listing. OrderableAt pushes the orderable predicate
// down to storage for customer listings.
type ItemQuery struct {
	ProviderID  string
	OrderableAt *time.Time
}

type UpdatePricesParams struct {
	ItemID          string
	ProviderID      string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	ExpectedVersion *int
	Now             time.Time
}

type AdjustStockParams struct {
	ItemID     string
	ProviderID string
	Delta      int
	ExpiresAt  *time.Time
	Now        time.Time
}

type InventoryRepository interface {
	ListItems(ctx context.Context, q ItemQuery) ([]domain.InventoryItem, error)
	GetItem(ctx context.Context, id string) (domain.InventoryItem, error)
	CreateItem(ctx context.Context, item domain.InventoryItem) error
	// UpdatePrices sets both prices in one statement.
	UpdatePrices(ctx context.Context, p UpdatePricesParams) (domain.InventoryItem, error)
	// AdjustStock applies a relative quantity change that may not drive
	// quantity below zero.
	AdjustStock(ctx context.Context, p AdjustStockParams) (domain.InventoryItem, error)
	// MarkSold flips status only when the item is not sold yet.
	MarkSold(ctx context.Context, id string, now time.Time) (domain.InventoryItem, error)
	// DeleteItem removes the item unless an order line references it.
	DeleteItem(ctx context.Context, id string) error
}

// InventoryService is the provider-facing pricing engine plus the listing
// read model with lazily computed expiry.
type InventoryService struct {
	repo         InventoryRepository
	clock        clock.Clock
	expiringSoon time.Duration
	logger       *slog.Logger
}

type InventoryServiceOption func(*InventoryService)

// WithExpiringSoon overrides the window used for the expiring-soon class.
func WithExpiringSoon(d time.Duration) InventoryServiceOption {
	return func(s *InventoryService) {
		if d > 0 {
			s.expiringSoon = d
		}
	}
}

func WithInventoryLogger(l *slog.Logger) InventoryServiceOption {
	return func(s *InventoryService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewInventoryService(repo InventoryRepository, clk clock.Clock, opts ...InventoryServiceOption) *InventoryService {
	svc := &InventoryService{
		repo:         repo,
		clock:        clk,
		expiringSoon: domain.DefaultExpiringSoon,
		logger:       obs.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ListInventoryInput struct {
	Actor      domain.Principal
	ProviderID string
	Filter     string
}

// List returns items with their classification at the current instant. Only
// the owning provider (or an admin) may pick a filter other than active.
func (s *InventoryService) List(ctx context.Context, in ListInventoryInput) ([]domain.ClassifiedItem, error) {
	filter, ok := domain.ParseInventoryFilter(in.Filter)
	if !ok {
		return nil, domain.ErrInvalidFilter
	}
	owner := in.ProviderID != "" && in.Actor.OwnsProvider(in.ProviderID)
	if in.Actor.IsAdmin() {
		owner = true
	}
	if !owner {
		filter = domain.FilterActive
	}

	now := s.clock.Now()
	q := ItemQuery{ProviderID: in.ProviderID}
	if filter == domain.FilterActive {
		q.OrderableAt = &now
	}

	items, err := s.repo.ListItems(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ClassifiedItem, 0, len(items))
	for _, item := range items {
		view := domain.ClassifyItem(item, now, s.expiringSoon)
		if !filter.Matches(view.Classification) {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

type CreateItemInput struct {
	Actor           domain.Principal
	ProviderID      string
	CategoryID      string
	Name            string
	Description     string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	Quantity        int
	ExpiresAt       time.Time
}

func (s *InventoryService) CreateItem(ctx context.Context, in CreateItemInput) (domain.InventoryItem, error) {
	providerID := in.ProviderID
	if providerID == "" {
		providerID = in.Actor.ID
	}
	if !in.Actor.OwnsProvider(providerID) {
		return domain.InventoryItem{}, domain.ErrForbidden
	}
	if err := domain.ValidatePrices(in.OriginalPrice, in.DiscountedPrice); err != nil {
		return domain.InventoryItem{}, err
	}
	if in.Quantity < 0 {
		return domain.InventoryItem{}, domain.ErrInvalidQuantity
	}
	now := s.clock.Now()
	if !in.ExpiresAt.After(now) {
		return domain.InventoryItem{}, domain.ErrInvalidExpiry
	}

	item := domain.InventoryItem{
		ID:              newUUID(),
		ProviderID:      providerID,
		CategoryID:      in.CategoryID,
		Name:            in.Name,
		Description:     in.Description,
		OriginalPrice:   in.OriginalPrice,
		DiscountedPrice: in.DiscountedPrice,
		Quantity:        in.Quantity,
		ExpiresAt:       in.ExpiresAt.UTC(),
		Status:          domain.ItemStatusAvailable,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

type SetPricesInput struct {
	Actor           domain.Principal
	ItemID          string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	// ExpectedVersion makes the edit fail if the item changed since the
	// provider loaded it.
	ExpectedVersion *int
}

// SetPrices updates both prices atomically. Quantity and expiry are untouched.
func (s *InventoryService) SetPrices(ctx context.Context, in SetPricesInput) (domain.InventoryItem, error) {
	if err := domain.ValidatePrices(in.OriginalPrice, in.DiscountedPrice); err != nil {
		return domain.InventoryItem{}, err
	}
	item, err := s.ownedItem(ctx, in.Actor, in.ItemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	updated, err := s.repo.UpdatePrices(ctx, UpdatePricesParams{
		ItemID:          item.ID,
		ProviderID:      item.ProviderID,
		OriginalPrice:   in.OriginalPrice,
		DiscountedPrice: in.DiscountedPrice,
		ExpectedVersion: in.ExpectedVersion,
		Now:             s.clock.Now(),
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.logger.Info("item_prices_set",
		"item_id", updated.ID,
		"original_price", updated.OriginalPrice.String(),
		"discounted_price", updated.DiscountedPrice.String(),
	)
	return updated, nil
}

type RestockInput struct {
	Actor         domain.Principal
	ItemID        string
	QuantityDelta int
	ExpiresAt     *time.Time
}

// Restock applies a relative stock change and optionally moves the expiry.
// Relative deltas keep concurrent checkout decrements from being lost.
func (s *InventoryService) Restock(ctx context.Context, in RestockInput) (domain.InventoryItem, error) {
	if in.QuantityDelta == 0 && in.ExpiresAt == nil {
		return domain.InventoryItem{}, domain.ErrInvalidQuantity
	}
	now := s.clock.Now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return domain.InventoryItem{}, domain.ErrInvalidExpiry
	}
	item, err := s.ownedItem(ctx, in.Actor, in.ItemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if item.Quantity+in.QuantityDelta < 0 {
		return domain.InventoryItem{}, domain.ErrInvalidQuantity
	}

	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		expiresAt = &t
	}
	return s.repo.AdjustStock(ctx, AdjustStockParams{
		ItemID:     item.ID,
		ProviderID: item.ProviderID,
		Delta:      in.QuantityDelta,
		ExpiresAt:  expiresAt,
		Now:        now,
	})
}

// MarkSold takes the item off sale. Quantity is kept for history.
func (s *InventoryService) MarkSold(ctx context.Context, actor domain.Principal, itemID string) (domain.InventoryItem, error) {
	item, err := s.ownedItem(ctx, actor, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if item.Status == domain.ItemStatusSold {
		return domain.InventoryItem{}, domain.ErrAlreadySold
	}
	return s.repo.MarkSold(ctx, item.ID, s.clock.Now())
}

// Delete removes an item that no order references. It never cascades.
func (s *InventoryService) Delete(ctx context.Context, actor domain.Principal, itemID string) error {
	item, err := s.ownedItem(ctx, actor, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return err
	}
	s.logger.Info("item_deleted", "item_id", item.ID, "provider_id", item.ProviderID)
	return nil
}

func (s *InventoryService) ownedItem(ctx context.Context, actor domain.Principal, itemID string) (domain.InventoryItem, error) {
	if itemID == "" {
		return domain.InventoryItem{}, domain.ErrInvalidID
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	if !actor.OwnsProvider(item.ProviderID) {
		return domain.InventoryItem{}, domain.ErrForbidden
	}
	return item, nil
}
