package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cimillas/perishable-market/internal/clock"
	"github.com/cimillas/perishable-market/internal/domain"
	"github.com/cimillas/perishable-market/internal/obs"
)

type UpdateStatusParams struct {
	OrderID          string
	From             domain.OrderStatus
	To               domain.OrderStatus
	EstimatedMinutes *int
	Now              time.Time
}

type StatusRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetOrderForUpdate locks the order row until the transaction ends.
	GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error)
	ListStatusLogs(ctx context.Context, orderID string) ([]domain.StatusLog, error)
	// UpdateStatus is compare-and-set on the current status; it returns
	// domain.ErrStatusConflict when the order is no longer in p.From.
	UpdateStatus(ctx context.Context, p UpdateStatusParams) error
	AppendStatusLog(ctx context.Context, log domain.StatusLog) (domain.StatusLog, error)
}

// StatusService is the order state machine. It is the only writer of order
// status and of the status log, and always writes both together.
type StatusService struct {
	repo      StatusRepository
	clock     clock.Clock
	publisher EventPublisher
	logger    *slog.Logger
}

type StatusServiceOption func(*StatusService)

func WithStatusPublisher(p EventPublisher) StatusServiceOption {
	return func(s *StatusService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithStatusLogger(l *slog.Logger) StatusServiceOption {
	return func(s *StatusService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStatusService(repo StatusRepository, clk clock.Clock, opts ...StatusServiceOption) *StatusService {
	svc := &StatusService{
		repo:      repo,
		clock:     clk,
		publisher: noopPublisher{},
		logger:    obs.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type AdvanceInput struct {
	Actor   domain.Principal
	OrderID string
	Target  domain.OrderStatus
	Notes   string
	// EstimatedMinutes is recorded only when Target is ACCEPTED.
	EstimatedMinutes *int
	// ExpectedStatus, when set, is the status the caller believes is current.
	ExpectedStatus *domain.OrderStatus
}

type TransitionResult struct {
	Order domain.Order
	Log   domain.StatusLog
	From  domain.OrderStatus
}

// Advance moves the order along one edge of the status table.
func (s *StatusService) Advance(ctx context.Context, in AdvanceInput) (TransitionResult, error) {
	if in.OrderID == "" {
		return TransitionResult{}, domain.ErrInvalidID
	}
	if !in.Target.Valid() {
		return TransitionResult{}, domain.ErrInvalidStatus
	}
	if in.EstimatedMinutes != nil && in.Target == domain.StatusAccepted && *in.EstimatedMinutes <= 0 {
		return TransitionResult{}, domain.ErrInvalidEstimate
	}

	var res TransitionResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		res.From = order.Status

		if !canAdvance(in.Actor, order, in.Target) {
			return domain.ErrForbidden
		}
		if in.ExpectedStatus != nil && *in.ExpectedStatus != order.Status {
			return domain.ErrStatusConflict
		}
		if !domain.CanTransition(order.Status, in.Target) {
			return domain.ErrIllegalTransition
		}

		var estimate *int
		if in.Target == domain.StatusAccepted && in.EstimatedMinutes != nil {
			v := *in.EstimatedMinutes
			estimate = &v
		}

		out, log, err := s.transition(txCtx, order, in.Target, in.Notes, estimate)
		if err != nil {
			return err
		}
		res.Order = out
		res.Log = log
		return nil
	})
	if err != nil {
		s.logger.Warn("order_transition_rejected",
			"order_id", in.OrderID,
			"actor_id", in.Actor.ID,
			"from", res.From,
			"to", in.Target,
			"error", err,
		)
		return TransitionResult{}, err
	}

	s.logger.Info("order_transition",
		"order_id", res.Order.ID,
		"actor_id", in.Actor.ID,
		"from", res.From,
		"to", res.Order.Status,
	)
	s.emit(ctx, res, false)
	return res, nil
}

type GoBackInput struct {
	Actor   domain.Principal
	OrderID string
	Notes   string
}

// GoBack reverts the order to the status of its second most recent log
// entry. The revert is appended as a new entry; history is never rewritten.
func (s *StatusService) GoBack(ctx context.Context, in GoBackInput) (TransitionResult, error) {
	if in.OrderID == "" {
		return TransitionResult{}, domain.ErrInvalidID
	}

	var res TransitionResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if err != nil {
			return err
		}
		res.From = order.Status

		if !in.Actor.OwnsProvider(order.ProviderID) {
			return domain.ErrForbidden
		}

		logs, err := s.repo.ListStatusLogs(txCtx, order.ID)
		if err != nil {
			return err
		}
		prior, err := domain.PriorStatus(logs)
		if err != nil {
			return err
		}
		if last := logs[len(logs)-1].Status; last != order.Status {
			return fmt.Errorf("order %s status %s diverges from log %s", order.ID, order.Status, last)
		}

		out, log, err := s.transition(txCtx, order, prior, in.Notes, order.EstimatedMinutes)
		if err != nil {
			return err
		}
		res.Order = out
		res.Log = log
		return nil
	})
	if err != nil {
		s.logger.Warn("order_revert_rejected",
			"order_id", in.OrderID,
			"actor_id", in.Actor.ID,
			"from", res.From,
			"error", err,
		)
		return TransitionResult{}, err
	}

	s.logger.Info("order_reverted",
		"order_id", res.Order.ID,
		"actor_id", in.Actor.ID,
		"from", res.From,
		"to", res.Order.Status,
	)
	s.emit(ctx, res, true)
	return res, nil
}

// transition writes the status pointer and its log entry inside the caller's
// transaction.
func (s *StatusService) transition(ctx context.Context, order domain.Order, to domain.OrderStatus, notes string, estimate *int) (domain.Order, domain.StatusLog, error) {
	now := s.clock.Now()
	// Log order is by created_at first; never stamp an entry before the
	// previous change.
	if now.Before(order.UpdatedAt) {
		now = order.UpdatedAt
	}

	if err := s.repo.UpdateStatus(ctx, UpdateStatusParams{
		OrderID:          order.ID,
		From:             order.Status,
		To:               to,
		EstimatedMinutes: estimate,
		Now:              now,
	}); err != nil {
		return domain.Order{}, domain.StatusLog{}, err
	}
	log, err := s.repo.AppendStatusLog(ctx, domain.StatusLog{
		OrderID:   order.ID,
		Status:    to,
		Notes:     notes,
		CreatedAt: now,
	})
	if err != nil {
		return domain.Order{}, domain.StatusLog{}, err
	}

	order.Status = to
	order.UpdatedAt = now
	if estimate != nil {
		order.EstimatedMinutes = estimate
	}
	return order, log, nil
}

func (s *StatusService) emit(ctx context.Context, res TransitionResult, reverted bool) {
	publish(ctx, s.publisher, s.logger, domain.OrderEvent{
		Type:       domain.EventOrderStatusChanged,
		OrderID:    res.Order.ID,
		CustomerID: res.Order.CustomerID,
		ProviderID: res.Order.ProviderID,
		From:       res.From,
		Status:     res.Order.Status,
		Reverted:   reverted,
		Notes:      res.Log.Notes,
		OccurredAt: res.Log.CreatedAt,
	})
}

// canAdvance: providers drive their own orders, customers may only cancel
// their own order while it is still pending.
func canAdvance(actor domain.Principal, order domain.Order, target domain.OrderStatus) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleProvider:
		return actor.ID == order.ProviderID
	case domain.RoleCustomer:
		return actor.ID == order.CustomerID &&
			order.Status == domain.StatusPending &&
			target == domain.StatusCancelled
	default:
		return false
	}
}
