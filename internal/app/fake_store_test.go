package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/domain"
)

// fakeStore is an in-memory stand-in for the Postgres repositories.
// Transactions are serialised and roll back to a snapshot on error.
type fakeStore struct {
	txMu sync.Mutex

	mu     sync.Mutex
	items  map[string]domain.InventoryItem
	orders map[string]domain.Order
	lines  map[string][]domain.OrderItem
	logs   map[string][]domain.StatusLog
	seq    int64

	decrementCalls int
	failCreate     error
}

func newFakeStore(items ...domain.InventoryItem) *fakeStore {
	f := &fakeStore{
		items:  make(map[string]domain.InventoryItem),
		orders: make(map[string]domain.Order),
		lines:  make(map[string][]domain.OrderItem),
		logs:   make(map[string][]domain.StatusLog),
	}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

type fakeSnapshot struct {
	items  map[string]domain.InventoryItem
	orders map[string]domain.Order
	lines  map[string][]domain.OrderItem
	logs   map[string][]domain.StatusLog
	seq    int64
}

func (f *fakeStore) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := fakeSnapshot{
		items:  make(map[string]domain.InventoryItem, len(f.items)),
		orders: make(map[string]domain.Order, len(f.orders)),
		lines:  make(map[string][]domain.OrderItem, len(f.lines)),
		logs:   make(map[string][]domain.StatusLog, len(f.logs)),
		seq:    f.seq,
	}
	for k, v := range f.items {
		s.items[k] = v
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	for k, v := range f.lines {
		s.lines[k] = append([]domain.OrderItem(nil), v...)
	}
	for k, v := range f.logs {
		s.logs[k] = append([]domain.StatusLog(nil), v...)
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.orders, f.lines, f.logs, f.seq = s.items, s.orders, s.lines, s.logs, s.seq
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	snap := f.snapshot()
	if err := fn(ctx); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) item(id string) domain.InventoryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

// inventory

func (f *fakeStore) ListItems(_ context.Context, q ItemQuery) ([]domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InventoryItem
	for _, item := range f.items {
		if q.ProviderID != "" && item.ProviderID != q.ProviderID {
			continue
		}
		if q.OrderableAt != nil && !item.Orderable(*q.OrderableAt) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (f *fakeStore) GetItem(_ context.Context, id string) (domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeStore) GetItems(_ context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.InventoryItem, len(ids))
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeStore) CreateItem(_ context.Context, item domain.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) UpdatePrices(_ context.Context, p UpdatePricesParams) (domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[p.ItemID]
	if !ok || item.ProviderID != p.ProviderID {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	if p.ExpectedVersion != nil && *p.ExpectedVersion != item.Version {
		return domain.InventoryItem{}, domain.ErrVersionConflict
	}
	item.OriginalPrice = p.OriginalPrice
	item.DiscountedPrice = p.DiscountedPrice
	item.Version++
	item.UpdatedAt = p.Now
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeStore) AdjustStock(_ context.Context, p AdjustStockParams) (domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[p.ItemID]
	if !ok {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	if item.Quantity+p.Delta < 0 {
		return domain.InventoryItem{}, domain.ErrInvalidQuantity
	}
	item.Quantity += p.Delta
	if p.ExpiresAt != nil {
		item.ExpiresAt = *p.ExpiresAt
	}
	item.Version++
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeStore) MarkSold(_ context.Context, id string, now time.Time) (domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.InventoryItem{}, domain.ErrItemNotFound
	}
	if item.Status == domain.ItemStatusSold {
		return domain.InventoryItem{}, domain.ErrAlreadySold
	}
	item.Status = domain.ItemStatusSold
	item.Version++
	item.UpdatedAt = now
	f.items[id] = item
	return item, nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	for _, lines := range f.lines {
		for _, l := range lines {
			if l.ItemID == id {
				return domain.ErrReferencedByOrders
			}
		}
	}
	delete(f.items, id)
	return nil
}

// orders

func (f *fakeStore) FindOrderByIdempotencyKey(_ context.Context, customerID, key string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.CustomerID == customerID && o.IdempotencyKey == key {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) DecrementStock(_ context.Context, p DecrementStockParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrementCalls++
	item, ok := f.items[p.ItemID]
	if !ok || !item.Orderable(p.Now) || item.Quantity < p.Quantity || !item.DiscountedPrice.Equal(p.Price) {
		return domain.ErrStockChanged
	}
	item.Quantity -= p.Quantity
	item.Version++
	f.items[item.ID] = item
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order domain.Order, items []domain.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.orders[order.ID] = order
	f.lines[order.ID] = append([]domain.OrderItem(nil), items...)
	return nil
}

func (f *fakeStore) AppendStatusLog(_ context.Context, log domain.StatusLog) (domain.StatusLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	log.Seq = f.seq
	f.logs[log.OrderID] = append(f.logs[log.OrderID], log)
	return log, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return f.GetOrder(ctx, id)
}

func (f *fakeStore) ListOrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderItem(nil), f.lines[orderID]...), nil
}

func (f *fakeStore) ListStatusLogs(_ context.Context, orderID string) ([]domain.StatusLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.StatusLog(nil), f.logs[orderID]...), nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, p UpdateStatusParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[p.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != p.From {
		return domain.ErrStatusConflict
	}
	o.Status = p.To
	o.UpdatedAt = p.Now
	if p.EstimatedMinutes != nil {
		v := *p.EstimatedMinutes
		o.EstimatedMinutes = &v
	}
	f.orders[o.ID] = o
	return nil
}

// seedOrder inserts an order with the given status history.
func (f *fakeStore) seedOrder(order domain.Order, history ...domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range history {
		f.seq++
		f.logs[order.ID] = append(f.logs[order.ID], domain.StatusLog{
			Seq:       f.seq,
			OrderID:   order.ID,
			Status:    st,
			CreatedAt: order.UpdatedAt,
		})
	}
	order.Status = history[len(history)-1]
	f.orders[order.ID] = order
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
