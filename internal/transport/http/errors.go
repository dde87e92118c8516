package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/perishable-market/internal/domain"
)

const (
	codeMethodNotAllowed        = "method_not_allowed"
	codeNotFound                = "not_found"
	codeUnauthorized            = "unauthorized"
	codeRateLimited             = "rate_limited"
	codeInvalidRequestBody      = "invalid_request_body"
	codeMissingRequiredField    = "missing_required_field"
	codeInvalidID               = "invalid_id"
	codeForbidden               = "forbidden"
	codeItemNotFound            = "item_not_found"
	codeOrderNotFound           = "order_not_found"
	codeInvalidPrice            = "invalid_price"
	codeInvalidQuantity         = "invalid_quantity"
	codeInvalidExpiry           = "invalid_expiry"
	codeInvalidFilter           = "invalid_filter"
	codeInvalidStatus           = "invalid_status"
	codeInvalidEstimate         = "invalid_estimate"
	codeEmptyCart               = "empty_cart"
	codeDeliveryAddressRequired = "delivery_address_required"
	codeAlreadySold             = "already_sold"
	codeReferencedByOrders      = "referenced_by_orders"
	codeVersionConflict         = "version_conflict"
	codeStockChanged            = "stock_changed"
	codeIdempotencyConflict     = "idempotency_conflict"
	codeIllegalTransition       = "illegal_transition"
	codeStatusConflict          = "status_conflict"
	codeNoPriorStatus           = "no_prior_status"
	codeMixedProviders          = "mixed_providers"
	codeCartInvalid             = "cart_invalid"
	codeInternalError           = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidExpiry, http.StatusBadRequest, codeInvalidExpiry},
	{domain.ErrInvalidFilter, http.StatusBadRequest, codeInvalidFilter},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{domain.ErrInvalidEstimate, http.StatusBadRequest, codeInvalidEstimate},
	{domain.ErrEmptyCart, http.StatusBadRequest, codeEmptyCart},
	{domain.ErrDeliveryAddressRequired, http.StatusBadRequest, codeDeliveryAddressRequired},
	{domain.ErrForbidden, http.StatusForbidden, codeForbidden},
	{domain.ErrItemNotFound, http.StatusNotFound, codeItemNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrAlreadySold, http.StatusConflict, codeAlreadySold},
	{domain.ErrReferencedByOrders, http.StatusConflict, codeReferencedByOrders},
	{domain.ErrVersionConflict, http.StatusConflict, codeVersionConflict},
	{domain.ErrStockChanged, http.StatusConflict, codeStockChanged},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrIllegalTransition, http.StatusConflict, codeIllegalTransition},
	{domain.ErrStatusConflict, http.StatusConflict, codeStatusConflict},
	{domain.ErrNoPriorStatus, http.StatusConflict, codeNoPriorStatus},
	{domain.ErrCartInvalid, http.StatusConflict, codeCartInvalid},
	{domain.ErrMixedProviders, http.StatusUnprocessableEntity, codeMixedProviders},
}

// errorStatus maps a service error to its HTTP status and code. Anything not
// in the table is an internal error.
func errorStatus(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, codeInternalError
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
