package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/cimillas/perishable-market/internal/domain"
)

// CartChecker is the minimal interface needed to validate a cart.
type CartChecker interface {
	Validate(ctx context.Context, lines []domain.CartLine) (domain.ValidationReport, error)
}

type cartLineRequest struct {
	ItemID   string          `json:"item_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type validateCartRequest struct {
	Lines []cartLineRequest `json:"lines"`
}

func toCartLines(in []cartLineRequest) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(in))
	for _, l := range in {
		out = append(out, domain.CartLine{ItemID: l.ItemID, Quantity: l.Quantity, Price: l.Price})
	}
	return out
}

type lineReportResponse struct {
	ItemID            string   `json:"item_id"`
	Quantity          int      `json:"quantity"`
	Price             string   `json:"price"`
	Verdict           string   `json:"verdict"`
	Reasons           []string `json:"reasons,omitempty"`
	Message           string   `json:"message,omitempty"`
	ProviderID        string   `json:"provider_id,omitempty"`
	AdjustedQuantity  *int     `json:"adjusted_quantity,omitempty"`
	AdjustedPrice     *string  `json:"adjusted_price,omitempty"`
	AvailableQuantity int      `json:"available_quantity"`
}

type reportResponse struct {
	Valid          bool                 `json:"valid"`
	Lines          []lineReportResponse `json:"lines"`
	Subtotal       string               `json:"subtotal"`
	ProviderID     string               `json:"provider_id,omitempty"`
	MixedProviders bool                 `json:"mixed_providers"`
}

func toReportResponse(r domain.ValidationReport) reportResponse {
	resp := reportResponse{
		Valid:          r.Valid,
		Lines:          make([]lineReportResponse, 0, len(r.Lines)),
		Subtotal:       r.Subtotal.StringFixed(2),
		ProviderID:     r.ProviderID,
		MixedProviders: r.MixedProviders,
	}
	for _, lr := range r.Lines {
		line := lineReportResponse{
			ItemID:            lr.Line.ItemID,
			Quantity:          lr.Line.Quantity,
			Price:             lr.Line.Price.StringFixed(2),
			Verdict:           string(lr.Verdict),
			Message:           lr.Message,
			ProviderID:        lr.ProviderID,
			AvailableQuantity: lr.AvailableQuantity,
		}
		for _, reason := range lr.Reasons {
			line.Reasons = append(line.Reasons, string(reason))
		}
		if lr.Verdict == domain.VerdictAdjust {
			qty := lr.AdjustedQuantity
			price := lr.AdjustedPrice.StringFixed(2)
			line.AdjustedQuantity = &qty
			line.AdjustedPrice = &price
		}
		resp.Lines = append(resp.Lines, line)
	}
	return resp
}

// HandleValidateCart serves POST /cart/validate. The report is returned with
// 200 whether or not the cart is valid; only malformed input is an error.
func HandleValidateCart(svc CartChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateCartRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		report, err := svc.Validate(r.Context(), toCartLines(req.Lines))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(report))
	}
}
