package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

type InventoryLister interface {
	List(ctx context.Context, in app.ListInventoryInput) ([]domain.ClassifiedItem, error)
}

type ItemCreator interface {
	CreateItem(ctx context.Context, in app.CreateItemInput) (domain.InventoryItem, error)
}

type PriceSetter interface {
	SetPrices(ctx context.Context, in app.SetPricesInput) (domain.InventoryItem, error)
}

type Restocker interface {
	Restock(ctx context.Context, in app.RestockInput) (domain.InventoryItem, error)
}

type SoldMarker interface {
	MarkSold(ctx context.Context, actor domain.Principal, itemID string) (domain.InventoryItem, error)
}

type ItemDeleter interface {
	Delete(ctx context.Context, actor domain.Principal, itemID string) error
}

type itemResponse struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	CategoryID      string    `json:"category_id,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	OriginalPrice   string    `json:"original_price"`
	DiscountedPrice string    `json:"discounted_price"`
	Quantity        int       `json:"quantity"`
	ExpiresAt       time.Time `json:"expires_at"`
	Status          string    `json:"status"`
	Version         int       `json:"version"`
	Classification  string    `json:"classification,omitempty"`
	Urgency         string    `json:"urgency,omitempty"`
	HoursRemaining  *int      `json:"hours_remaining,omitempty"`
}

func toItemResponse(item domain.InventoryItem) itemResponse {
	return itemResponse{
		ID:              item.ID,
		ProviderID:      item.ProviderID,
		CategoryID:      item.CategoryID,
		Name:            item.Name,
		Description:     item.Description,
		OriginalPrice:   item.OriginalPrice.StringFixed(2),
		DiscountedPrice: item.DiscountedPrice.StringFixed(2),
		Quantity:        item.Quantity,
		ExpiresAt:       item.ExpiresAt,
		Status:          string(item.Status),
		Version:         item.Version,
	}
}

func toClassifiedResponse(v domain.ClassifiedItem) itemResponse {
	resp := toItemResponse(v.Item)
	resp.Classification = string(v.Classification)
	resp.Urgency = string(v.Urgency)
	hours := v.HoursRemaining
	resp.HoursRemaining = &hours
	return resp
}

type itemListResponse struct {
	Items []itemResponse `json:"items"`
}

// HandleListInventory serves GET /inventory?providerId=&filter=.
func HandleListInventory(svc InventoryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := svc.List(r.Context(), app.ListInventoryInput{
			Actor:      principalFromContext(r.Context()),
			ProviderID: q.Get("providerId"),
			Filter:     q.Get("filter"),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := itemListResponse{Items: make([]itemResponse, 0, len(items))}
		for _, it := range items {
			resp.Items = append(resp.Items, toClassifiedResponse(it))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type createItemRequest struct {
	ProviderID      string          `json:"provider_id"`
	CategoryID      string          `json:"category_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Quantity        int             `json:"quantity"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// HandleCreateItem serves POST /inventory.
func HandleCreateItem(svc ItemCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createItemRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" || req.ExpiresAt.IsZero() {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "name and expires_at are required")
			return
		}

		item, err := svc.CreateItem(r.Context(), app.CreateItemInput{
			Actor:           principalFromContext(r.Context()),
			ProviderID:      req.ProviderID,
			CategoryID:      req.CategoryID,
			Name:            req.Name,
			Description:     req.Description,
			OriginalPrice:   req.OriginalPrice,
			DiscountedPrice: req.DiscountedPrice,
			Quantity:        req.Quantity,
			ExpiresAt:       req.ExpiresAt,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toItemResponse(item))
	}
}

type setPricesRequest struct {
	OriginalPrice   *decimal.Decimal `json:"original_price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price"`
	ExpectedVersion *int             `json:"expected_version"`
}

// HandleSetPrices serves POST /inventory/{id}/price.
func HandleSetPrices(svc PriceSetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setPricesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.OriginalPrice == nil || req.DiscountedPrice == nil {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "original_price and discounted_price are required")
			return
		}

		item, err := svc.SetPrices(r.Context(), app.SetPricesInput{
			Actor:           principalFromContext(r.Context()),
			ItemID:          chi.URLParam(r, "id"),
			OriginalPrice:   *req.OriginalPrice,
			DiscountedPrice: *req.DiscountedPrice,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toItemResponse(item))
	}
}

type restockRequest struct {
	QuantityDelta int        `json:"quantity_delta"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// HandleRestock serves POST /inventory/{id}/stock.
func HandleRestock(svc Restocker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req restockRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		item, err := svc.Restock(r.Context(), app.RestockInput{
			Actor:         principalFromContext(r.Context()),
			ItemID:        chi.URLParam(r, "id"),
			QuantityDelta: req.QuantityDelta,
			ExpiresAt:     req.ExpiresAt,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toItemResponse(item))
	}
}

// HandleMarkSold serves POST /inventory/{id}/sold.
func HandleMarkSold(svc SoldMarker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := svc.MarkSold(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toItemResponse(item))
	}
}

// HandleDeleteItem serves DELETE /inventory/{id}.
func HandleDeleteItem(svc ItemDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}
