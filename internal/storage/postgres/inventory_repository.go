package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

const itemColumns = `id, provider_id, category_id, name, description, original_price, discounted_price,
	quantity, expires_at, status, version, created_at, updated_at`

type InventoryRepository struct {
	db
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: db{pool: pool}}
}

func (r *InventoryRepository) ListItems(ctx context.Context, q app.ItemQuery) ([]domain.InventoryItem, error) {
	query := `
SELECT ` + itemColumns + `
FROM inventory_items
WHERE ($1 = '' OR provider_id = $1)
  AND ($2::timestamptz IS NULL OR (status = 'available' AND quantity > 0 AND expires_at > $2))
ORDER BY expires_at, id`

	rows, err := r.query(ctx, query, q.ProviderID, q.OrderableAt)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *InventoryRepository) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	item, err := scanItem(r.queryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
	if err != nil {
		return domain.InventoryItem{}, itemError("get item", err)
	}
	return item, nil
}

// GetItems loads the live rows for a cart. Ids that are not UUIDs cannot
// exist and are left out of the result, like any other missing item.
func (r *InventoryRepository) GetItems(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	out := make(map[string]domain.InventoryItem, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := r.query(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ANY($1::text[]::uuid[])`, valid)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}

	// Callers look items up by the id they sent.
	for _, id := range valid {
		if _, ok := out[id]; ok {
			continue
		}
		parsed, _ := uuid.Parse(id)
		if item, ok := out[parsed.String()]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (r *InventoryRepository) CreateItem(ctx context.Context, item domain.InventoryItem) error {
	const stmt = `
INSERT INTO inventory_items (id, provider_id, category_id, name, description, original_price,
	discounted_price, quantity, expires_at, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.exec(ctx, stmt,
		item.ID, item.ProviderID, item.CategoryID, item.Name, item.Description,
		item.OriginalPrice, item.DiscountedPrice, item.Quantity, item.ExpiresAt,
		string(item.Status), item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidPrice
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *InventoryRepository) UpdatePrices(ctx context.Context, p app.UpdatePricesParams) (domain.InventoryItem, error) {
	query := `
UPDATE inventory_items
SET original_price = $3, discounted_price = $4, version = version + 1, updated_at = $5
WHERE id = $1 AND provider_id = $2 AND ($6::int IS NULL OR version = $6)
RETURNING ` + itemColumns

	item, err := scanItem(r.queryRow(ctx, query,
		p.ItemID, p.ProviderID, p.OriginalPrice, p.DiscountedPrice, p.Now, p.ExpectedVersion))
	if err == nil {
		return item, nil
	}
	if isCheckViolation(err) {
		return domain.InventoryItem{}, domain.ErrInvalidPrice
	}
	if errors.Is(err, pgx.ErrNoRows) && p.ExpectedVersion != nil {
		if ok, lookupErr := r.exists(ctx, p.ItemID); lookupErr == nil && ok {
			return domain.InventoryItem{}, domain.ErrVersionConflict
		}
	}
	return domain.InventoryItem{}, itemError("update prices", err)
}

func (r *InventoryRepository) AdjustStock(ctx context.Context, p app.AdjustStockParams) (domain.InventoryItem, error) {
	query := `
UPDATE inventory_items
SET quantity = quantity + $3,
    expires_at = COALESCE($4::timestamptz, expires_at),
    version = version + 1,
    updated_at = $5
WHERE id = $1 AND provider_id = $2 AND quantity + $3 >= 0
RETURNING ` + itemColumns

	item, err := scanItem(r.queryRow(ctx, query, p.ItemID, p.ProviderID, p.Delta, p.ExpiresAt, p.Now))
	if err == nil {
		return item, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if ok, lookupErr := r.exists(ctx, p.ItemID); lookupErr == nil && ok {
			return domain.InventoryItem{}, domain.ErrInvalidQuantity
		}
	}
	return domain.InventoryItem{}, itemError("adjust stock", err)
}

func (r *InventoryRepository) MarkSold(ctx context.Context, id string, now time.Time) (domain.InventoryItem, error) {
	query := `
UPDATE inventory_items
SET status = 'sold', version = version + 1, updated_at = $2
WHERE id = $1 AND status <> 'sold'
RETURNING ` + itemColumns

	item, err := scanItem(r.queryRow(ctx, query, id, now))
	if err == nil {
		return item, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if ok, lookupErr := r.exists(ctx, id); lookupErr == nil && ok {
			return domain.InventoryItem{}, domain.ErrAlreadySold
		}
	}
	return domain.InventoryItem{}, itemError("mark sold", err)
}

func (r *InventoryRepository) DeleteItem(ctx context.Context, id string) error {
	const stmt = `
DELETE FROM inventory_items
WHERE id = $1
  AND NOT EXISTS (SELECT 1 FROM order_items WHERE item_id = $1)`

	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrReferencedByOrders
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return domain.ErrReferencedByOrders
	}
	return domain.ErrItemNotFound
}

func (r *InventoryRepository) exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_items WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, itemError("lookup item", err)
	}
	return ok, nil
}

func scanItem(row pgx.Row) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	var status string
	err := row.Scan(
		&item.ID, &item.ProviderID, &item.CategoryID, &item.Name, &item.Description,
		&item.OriginalPrice, &item.DiscountedPrice, &item.Quantity, &item.ExpiresAt,
		&status, &item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item.Status = domain.ItemStatus(status)
	item.ExpiresAt = item.ExpiresAt.UTC()
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

func itemError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrItemNotFound
	case isInvalidUUID(err):
		return domain.ErrInvalidID
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
