package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

type stubInventory struct {
	list     func(app.ListInventoryInput) ([]domain.ClassifiedItem, error)
	create   func(app.CreateItemInput) (domain.InventoryItem, error)
	prices   func(app.SetPricesInput) (domain.InventoryItem, error)
	restock  func(app.RestockInput) (domain.InventoryItem, error)
	markSold func(domain.Principal, string) (domain.InventoryItem, error)
	del      func(domain.Principal, string) error
}

func (s *stubInventory) List(_ context.Context, in app.ListInventoryInput) ([]domain.ClassifiedItem, error) {
	return s.list(in)
}

func (s *stubInventory) CreateItem(_ context.Context, in app.CreateItemInput) (domain.InventoryItem, error) {
	return s.create(in)
}

func (s *stubInventory) SetPrices(_ context.Context, in app.SetPricesInput) (domain.InventoryItem, error) {
	return s.prices(in)
}

func (s *stubInventory) Restock(_ context.Context, in app.RestockInput) (domain.InventoryItem, error) {
	return s.restock(in)
}

func (s *stubInventory) MarkSold(_ context.Context, actor domain.Principal, id string) (domain.InventoryItem, error) {
	return s.markSold(actor, id)
}

func (s *stubInventory) Delete(_ context.Context, actor domain.Principal, id string) error {
	return s.del(actor, id)
}

type stubCart struct {
	validate func([]domain.CartLine) (domain.ValidationReport, error)
}

func (s *stubCart) Validate(_ context.Context, lines []domain.CartLine) (domain.ValidationReport, error) {
	return s.validate(lines)
}

type stubOrders struct {
	checkout func(app.CheckoutInput) (app.CheckoutResult, error)
	get      func(domain.Principal, string) (domain.OrderDetail, error)
}

func (s *stubOrders) Checkout(_ context.Context, in app.CheckoutInput) (app.CheckoutResult, error) {
	return s.checkout(in)
}

func (s *stubOrders) GetOrder(_ context.Context, actor domain.Principal, id string) (domain.OrderDetail, error) {
	return s.get(actor, id)
}

type stubStatus struct {
	advance func(app.AdvanceInput) (app.TransitionResult, error)
	goBack  func(app.GoBackInput) (app.TransitionResult, error)
}

func (s *stubStatus) Advance(_ context.Context, in app.AdvanceInput) (app.TransitionResult, error) {
	return s.advance(in)
}

func (s *stubStatus) GoBack(_ context.Context, in app.GoBackInput) (app.TransitionResult, error) {
	return s.goBack(in)
}

// do sends a request through the full router as the given principal. An
// empty principal ID sends no identity headers.
func do(t *testing.T, h http.Handler, method, path, body string, p domain.Principal, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if p.ID != "" {
		req.Header.Set(principalIDHeader, p.ID)
		req.Header.Set(principalRoleHeader, string(p.Role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var (
	asCustomer = domain.Principal{ID: "cust-1", Role: domain.RoleCustomer}
	asProvider = domain.Principal{ID: "prov-1", Role: domain.RoleProvider}
	asAdmin    = domain.Principal{ID: "root", Role: domain.RoleAdmin}
)
