package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

const idempotencyKeyHeader = "Idempotency-Key"

// OrderPlacer is the minimal interface needed to check out a cart.
type OrderPlacer interface {
	Checkout(ctx context.Context, in app.CheckoutInput) (app.CheckoutResult, error)
}

// OrderReader is the minimal interface needed to show an order.
type OrderReader interface {
	GetOrder(ctx context.Context, actor domain.Principal, orderID string) (domain.OrderDetail, error)
}

type deliveryRequest struct {
	Address       string `json:"address"`
	Notes         string `json:"notes"`
	PaymentMethod string `json:"payment_method"`
}

type checkoutRequest struct {
	Lines    []cartLineRequest `json:"lines"`
	Delivery deliveryRequest   `json:"delivery"`
}

type orderItemResponse struct {
	ItemID    string `json:"item_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type statusLogResponse struct {
	Status    string    `json:"status"`
	Label     string    `json:"label"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type nextActionResponse struct {
	Status string `json:"status"`
	Label  string `json:"label"`
}

type orderResponse struct {
	ID               string               `json:"id"`
	CustomerID       string               `json:"customer_id"`
	ProviderID       string               `json:"provider_id"`
	Status           string               `json:"status"`
	StatusLabel      string               `json:"status_label"`
	Terminal         bool                 `json:"terminal"`
	Subtotal         string               `json:"subtotal"`
	DeliveryFee      string               `json:"delivery_fee"`
	ServiceFee       string               `json:"service_fee"`
	TotalAmount      string               `json:"total_amount"`
	DeliveryAddress  string               `json:"delivery_address"`
	DeliveryNotes    string               `json:"delivery_notes,omitempty"`
	PaymentMethod    string               `json:"payment_method,omitempty"`
	EstimatedMinutes *int                 `json:"estimated_minutes,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Items            []orderItemResponse  `json:"items,omitempty"`
	History          []statusLogResponse  `json:"history,omitempty"`
	NextActions      []nextActionResponse `json:"next_actions"`
}

func toOrderResponse(o domain.Order, items []domain.OrderItem, logs []domain.StatusLog) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		ProviderID:       o.ProviderID,
		Status:           string(o.Status),
		StatusLabel:      o.Status.Label(),
		Terminal:         o.Status.Terminal(),
		Subtotal:         o.Subtotal.StringFixed(2),
		DeliveryFee:      o.DeliveryFee.StringFixed(2),
		ServiceFee:       o.ServiceFee.StringFixed(2),
		TotalAmount:      o.TotalAmount.StringFixed(2),
		DeliveryAddress:  o.Delivery.Address,
		DeliveryNotes:    o.Delivery.Notes,
		PaymentMethod:    o.Delivery.PaymentMethod,
		EstimatedMinutes: o.EstimatedMinutes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		NextActions:      []nextActionResponse{},
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			ItemID:    it.ItemID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	for _, l := range logs {
		resp.History = append(resp.History, statusLogResponse{
			Status:    string(l.Status),
			Label:     l.Status.Label(),
			Notes:     l.Notes,
			CreatedAt: l.CreatedAt,
		})
	}
	for _, next := range domain.AllowedNext(o.Status) {
		resp.NextActions = append(resp.NextActions, nextActionResponse{Status: string(next), Label: next.Label()})
	}
	return resp
}

type cartRejectedResponse struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Report reportResponse `json:"report"`
}

// HandleCheckout serves POST /orders. A replayed Idempotency-Key returns the
// original order with 200 instead of 201.
func HandleCheckout(svc OrderPlacer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Checkout(r.Context(), app.CheckoutInput{
			Actor: principalFromContext(r.Context()),
			Lines: toCartLines(req.Lines),
			Delivery: domain.DeliveryInfo{
				Address:       strings.TrimSpace(req.Delivery.Address),
				Notes:         req.Delivery.Notes,
				PaymentMethod: req.Delivery.PaymentMethod,
			},
			IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
		})
		if err != nil {
			if errors.Is(err, domain.ErrCartInvalid) || errors.Is(err, domain.ErrMixedProviders) {
				status, code := errorStatus(err)
				writeJSON(w, status, cartRejectedResponse{
					Error:  err.Error(),
					Code:   code,
					Report: toReportResponse(res.Report),
				})
				return
			}
			writeServiceError(w, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, toOrderResponse(res.Order, res.Items, nil))
	}
}

// HandleGetOrder serves GET /orders/{id}.
func HandleGetOrder(svc OrderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetOrder(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponse(detail.Order, detail.Items, detail.Logs))
	}
}
