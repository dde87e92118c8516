package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/clock"
	"github.com/cimillas/perishable-market/internal/domain"
	"github.com/cimillas/perishable-market/internal/obs"
)

type DecrementStockParams struct {
	ItemID   string
	Quantity int
	// Price is the discounted price the customer confirmed. The decrement
	// only applies while the live price still equals it.
	Price decimal.Decimal
	Now   time.Time
}

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error)
	// DecrementStock is a single conditional update; it returns
	// domain.ErrStockChanged when the row no longer satisfies the guard.
	DecrementStock(ctx context.Context, p DecrementStockParams) error
	CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error
	AppendStatusLog(ctx context.Context, log domain.StatusLog) (domain.StatusLog, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	ListStatusLogs(ctx context.Context, orderID string) ([]domain.StatusLog, error)
}

type OrderService struct {
	repo      OrderRepository
	validator *CartValidator
	clock     clock.Clock
	fees      domain.Fees
	publisher EventPublisher
	logger    *slog.Logger
}

type OrderServiceOption func(*OrderService)

func WithFees(f domain.Fees) OrderServiceOption {
	return func(s *OrderService) {
		s.fees = f
	}
}

func WithOrderPublisher(p EventPublisher) OrderServiceOption {
	return func(s *OrderService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithOrderLogger(l *slog.Logger) OrderServiceOption {
	return func(s *OrderService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewOrderService(repo OrderRepository, validator *CartValidator, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:      repo,
		validator: validator,
		clock:     clk,
		fees:      domain.Fees{DeliveryFee: decimal.Zero, ServiceFeePercent: decimal.Zero},
		publisher: noopPublisher{},
		logger:    obs.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CheckoutInput struct {
	Actor          domain.Principal
	Lines          []domain.CartLine
	Delivery       domain.DeliveryInfo
	IdempotencyKey string
}

// CheckoutResult always carries the validation report. Order is only set when
// the checkout committed (or an earlier commit was replayed).
type CheckoutResult struct {
	Report  domain.ValidationReport
	Order   domain.Order
	Items   []domain.OrderItem
	Created bool
}

// Checkout validates the cart and, only if every line is OK, decrements stock
// and creates the order in one transaction. A failed line rolls back every
// decrement made before it.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	if in.Actor.Role != domain.RoleCustomer || in.Actor.ID == "" {
		return CheckoutResult{}, domain.ErrForbidden
	}
	if in.Delivery.Address == "" {
		return CheckoutResult{}, domain.ErrDeliveryAddressRequired
	}

	if in.IdempotencyKey != "" {
		if res, ok, err := s.replay(ctx, in); err != nil || ok {
			return res, err
		}
	}

	now := s.clock.Now()
	report, err := s.validator.ValidateAt(ctx, in.Lines, now)
	if err != nil {
		return CheckoutResult{}, err
	}
	if !report.Valid {
		if report.MixedProviders {
			return CheckoutResult{Report: report}, domain.ErrMixedProviders
		}
		return CheckoutResult{Report: report}, domain.ErrCartInvalid
	}

	order, items := s.buildOrder(in, report, now)

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if in.IdempotencyKey != "" {
			existing, err := s.repo.FindOrderByIdempotencyKey(txCtx, in.Actor.ID, in.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrIdempotencyConflict
			}
		}

		// Lock rows in a stable order so concurrent checkouts cannot deadlock.
		lines := append([]domain.CartLine(nil), in.Lines...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
		for _, line := range lines {
			if err := s.repo.DecrementStock(txCtx, DecrementStockParams{
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				Price:    line.Price,
				Now:      now,
			}); err != nil {
				return err
			}
		}

		if err := s.repo.CreateOrder(txCtx, order, items); err != nil {
			return err
		}
		_, err := s.repo.AppendStatusLog(txCtx, domain.StatusLog{
			OrderID:   order.ID,
			Status:    domain.StatusPending,
			Notes:     "order placed",
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		// A concurrent retry with the same key may have committed first.
		if errors.Is(err, domain.ErrIdempotencyConflict) {
			if res, ok, rerr := s.replay(ctx, in); rerr == nil && ok {
				return res, nil
			}
		}
		if errors.Is(err, domain.ErrStockChanged) {
			s.logger.Info("checkout_stock_changed", "customer_id", in.Actor.ID)
		}
		return CheckoutResult{Report: report}, err
	}

	s.logger.Info("order_created",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
		"provider_id", order.ProviderID,
		"total", order.TotalAmount.StringFixed(2),
	)
	publish(ctx, s.publisher, s.logger, domain.OrderEvent{
		Type:       domain.EventOrderCreated,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ProviderID: order.ProviderID,
		Status:     order.Status,
		OccurredAt: now,
	})

	return CheckoutResult{Report: report, Order: order, Items: items, Created: true}, nil
}

func (s *OrderService) replay(ctx context.Context, in CheckoutInput) (CheckoutResult, bool, error) {
	existing, err := s.repo.FindOrderByIdempotencyKey(ctx, in.Actor.ID, in.IdempotencyKey)
	if err != nil || existing == nil {
		return CheckoutResult{}, false, err
	}
	items, err := s.repo.ListOrderItems(ctx, existing.ID)
	if err != nil {
		return CheckoutResult{}, false, err
	}
	return CheckoutResult{
		Report:  domain.ValidationReport{Valid: true, Subtotal: existing.Subtotal, ProviderID: existing.ProviderID},
		Order:   *existing,
		Items:   items,
		Created: false,
	}, true, nil
}

func (s *OrderService) buildOrder(in CheckoutInput, report domain.ValidationReport, now time.Time) (domain.Order, []domain.OrderItem) {
	orderID := newUUID()
	items := make([]domain.OrderItem, 0, len(report.Lines))
	subtotal := decimal.Zero
	for _, lr := range report.Lines {
		item := domain.OrderItem{
			ID:        newUUID(),
			OrderID:   orderID,
			ItemID:    lr.Line.ItemID,
			Quantity:  lr.Line.Quantity,
			UnitPrice: lr.Line.Price,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	delivery, service, total := s.fees.Totals(subtotal)
	order := domain.Order{
		ID:             orderID,
		CustomerID:     in.Actor.ID,
		ProviderID:     report.ProviderID,
		Status:         domain.StatusPending,
		Subtotal:       subtotal,
		DeliveryFee:    delivery,
		ServiceFee:     service,
		TotalAmount:    total,
		Delivery:       in.Delivery,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return order, items
}

// GetOrder returns the order with its lines and history. Customers and
// providers only see their own orders.
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Principal, orderID string) (domain.OrderDetail, error) {
	if orderID == "" {
		return domain.OrderDetail{}, domain.ErrInvalidID
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	if !canView(actor, order) {
		return domain.OrderDetail{}, domain.ErrForbidden
	}
	items, err := s.repo.ListOrderItems(ctx, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	logs, err := s.repo.ListStatusLogs(ctx, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	return domain.OrderDetail{Order: order, Items: items, Logs: logs}, nil
}

func canView(actor domain.Principal, order domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return actor.ID == order.CustomerID
	case domain.RoleProvider:
		return actor.ID == order.ProviderID
	default:
		return false
	}
}
