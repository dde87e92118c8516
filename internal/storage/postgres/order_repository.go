package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

const orderColumns = `id, customer_id, provider_id, status, subtotal, delivery_fee, service_fee,
	total_amount, delivery_address, delivery_notes, payment_method, estimated_minutes,
	COALESCE(idempotency_key, ''), created_at, updated_at`

// OrderRepository stores orders, their lines and their status history. It
// backs both checkout and the status state machine.
type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) FindOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 AND idempotency_key = $2`,
		customerID, key,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}
	return &o, nil
}

// DecrementStock takes p.Quantity units only while the item is still
// orderable at p.Now and priced at p.Price. The row lock it takes is held
// until the surrounding transaction ends.
func (r *OrderRepository) DecrementStock(ctx context.Context, p app.DecrementStockParams) error {
	const stmt = `
UPDATE inventory_items
SET quantity = quantity - $2, version = version + 1, updated_at = $4
WHERE id = $1
  AND status = 'available'
  AND quantity >= $2
  AND expires_at > $4
  AND discounted_price = $3`

	tag, err := r.exec(ctx, stmt, p.ItemID, p.Quantity, p.Price, p.Now)
	if err != nil {
		if isInvalidUUID(err) || isCheckViolation(err) {
			return domain.ErrStockChanged
		}
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockChanged
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order, items []domain.OrderItem) error {
	const orderStmt = `
INSERT INTO orders (id, customer_id, provider_id, status, subtotal, delivery_fee, service_fee,
	total_amount, delivery_address, delivery_notes, payment_method, estimated_minutes,
	idempotency_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15)`

	_, err := r.exec(ctx, orderStmt,
		order.ID, order.CustomerID, order.ProviderID, string(order.Status),
		order.Subtotal, order.DeliveryFee, order.ServiceFee, order.TotalAmount,
		order.Delivery.Address, order.Delivery.Notes, order.Delivery.PaymentMethod,
		order.EstimatedMinutes, order.IdempotencyKey, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (id, order_id, item_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)`

	for _, it := range items {
		if _, err := r.exec(ctx, itemStmt, it.ID, order.ID, it.ItemID, it.Quantity, it.UnitPrice); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrStockChanged
			}
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

func (r *OrderRepository) AppendStatusLog(ctx context.Context, log domain.StatusLog) (domain.StatusLog, error) {
	const stmt = `
INSERT INTO order_status_logs (order_id, status, notes, created_at)
VALUES ($1, $2, $3, $4)
RETURNING seq`

	if err := r.queryRow(ctx, stmt, log.OrderID, string(log.Status), log.Notes, log.CreatedAt).Scan(&log.Seq); err != nil {
		if isForeignKeyViolation(err) {
			return domain.StatusLog{}, domain.ErrOrderNotFound
		}
		return domain.StatusLog{}, fmt.Errorf("append status log: %w", err)
	}
	return log, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, orderError("get order", err)
	}
	return o, nil
}

func (r *OrderRepository) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Order{}, orderError("get order for update", err)
	}
	return o, nil
}

func (r *OrderRepository) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.query(ctx, `
SELECT id, order_id, item_id, quantity, unit_price
FROM order_items
WHERE order_id = $1
ORDER BY item_id`, orderID)
	if err != nil {
		return nil, orderError("list order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// ListStatusLogs returns the history oldest first. seq breaks ties between
// entries written in the same instant.
func (r *OrderRepository) ListStatusLogs(ctx context.Context, orderID string) ([]domain.StatusLog, error) {
	rows, err := r.query(ctx, `
SELECT seq, order_id, status, notes, created_at
FROM order_status_logs
WHERE order_id = $1
ORDER BY created_at, seq`, orderID)
	if err != nil {
		return nil, orderError("list status logs", err)
	}
	defer rows.Close()

	var logs []domain.StatusLog
	for rows.Next() {
		var l domain.StatusLog
		var status string
		if err := rows.Scan(&l.Seq, &l.OrderID, &status, &l.Notes, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		l.Status = domain.OrderStatus(status)
		l.CreatedAt = l.CreatedAt.UTC()
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return logs, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, p app.UpdateStatusParams) error {
	const stmt = `
UPDATE orders
SET status = $3, updated_at = $4, estimated_minutes = COALESCE($5::int, estimated_minutes)
WHERE id = $1 AND status = $2`

	tag, err := r.exec(ctx, stmt, p.OrderID, string(p.From), string(p.To), p.Now, p.EstimatedMinutes)
	if err != nil {
		return orderError("update status", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, p.OrderID).Scan(&exists); err != nil {
		return orderError("update status", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrStatusConflict
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.ProviderID, &status,
		&o.Subtotal, &o.DeliveryFee, &o.ServiceFee, &o.TotalAmount,
		&o.Delivery.Address, &o.Delivery.Notes, &o.Delivery.PaymentMethod,
		&o.EstimatedMinutes, &o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func orderError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrOrderNotFound
	case isInvalidUUID(err):
		return domain.ErrInvalidID
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
