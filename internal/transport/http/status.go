package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/domain"
)

// StatusAdvancer is the minimal interface needed to move an order forward.
type StatusAdvancer interface {
	Advance(ctx context.Context, in app.AdvanceInput) (app.TransitionResult, error)
}

// StatusReverter is the minimal interface needed to undo the last move.
type StatusReverter interface {
	GoBack(ctx context.Context, in app.GoBackInput) (app.TransitionResult, error)
}

type advanceRequest struct {
	Status           string  `json:"status"`
	Notes            string  `json:"notes"`
	EstimatedMinutes *int    `json:"estimated_minutes"`
	ExpectedStatus   *string `json:"expected_status"`
}

type revertRequest struct {
	Notes string `json:"notes"`
}

type transitionResponse struct {
	From  string        `json:"from"`
	Order orderResponse `json:"order"`
}

// HandleAdvanceStatus serves POST /orders/{id}/status.
func HandleAdvanceStatus(svc StatusAdvancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req advanceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Status == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "status is required")
			return
		}
		target, err := domain.ParseOrderStatus(req.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		var expected *domain.OrderStatus
		if req.ExpectedStatus != nil {
			st, err := domain.ParseOrderStatus(*req.ExpectedStatus)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			expected = &st
		}

		res, err := svc.Advance(r.Context(), app.AdvanceInput{
			Actor:            principalFromContext(r.Context()),
			OrderID:          chi.URLParam(r, "id"),
			Target:           target,
			Notes:            req.Notes,
			EstimatedMinutes: req.EstimatedMinutes,
			ExpectedStatus:   expected,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransitionResponse(res))
	}
}

// HandleRevertStatus serves POST /orders/{id}/status/revert. An empty body
// is accepted, whether or not its length was declared.
func HandleRevertStatus(svc StatusReverter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revertRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		res, err := svc.GoBack(r.Context(), app.GoBackInput{
			Actor:   principalFromContext(r.Context()),
			OrderID: chi.URLParam(r, "id"),
			Notes:   req.Notes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransitionResponse(res))
	}
}

func toTransitionResponse(res app.TransitionResult) transitionResponse {
	return transitionResponse{
		From:  string(res.From),
		Order: toOrderResponse(res.Order, nil, []domain.StatusLog{res.Log}),
	}
}
