package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cimillas/perishable-market/internal/obs"
)

// InventoryAPI is everything the inventory routes need.
type InventoryAPI interface {
	InventoryLister
	ItemCreator
	PriceSetter
	Restocker
	SoldMarker
	ItemDeleter
}

// OrderAPI is everything the order routes need.
type OrderAPI interface {
	OrderPlacer
	OrderReader
}

// StatusAPI is everything the status routes need.
type StatusAPI interface {
	StatusAdvancer
	StatusReverter
}

// RouterDeps wires services into the HTTP surface. DB and Limiter are
// optional.
type RouterDeps struct {
	Inventory   InventoryAPI
	Cart        CartChecker
	Orders      OrderAPI
	Status      StatusAPI
	DB          Pinger
	Limiter     RateLimiter
	RateLimit   int
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the API handler. Everything except /health requires a
// principal; checkout-side writes are throttled when a limiter is set.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = obs.Discard()
	}

	r := chi.NewRouter()
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HandleHealth(deps.DB))

	r.Group(func(r chi.Router) {
		r.Use(RequirePrincipal)

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", HandleListInventory(deps.Inventory))
			r.Post("/", HandleCreateItem(deps.Inventory))
			r.Post("/{id}/price", HandleSetPrices(deps.Inventory))
			r.Post("/{id}/stock", HandleRestock(deps.Inventory))
			r.Post("/{id}/sold", HandleMarkSold(deps.Inventory))
			r.Delete("/{id}", HandleDeleteItem(deps.Inventory))
		})

		throttled := func(h http.HandlerFunc) http.Handler {
			if deps.Limiter == nil {
				return h
			}
			return RateLimit(deps.Limiter, deps.RateLimit, logger)(h)
		}

		r.Method(http.MethodPost, "/cart/validate", throttled(HandleValidateCart(deps.Cart)))

		r.Route("/orders", func(r chi.Router) {
			r.Method(http.MethodPost, "/", throttled(HandleCheckout(deps.Orders)))
			r.Get("/{id}", HandleGetOrder(deps.Orders))
			r.Post("/{id}/status", HandleAdvanceStatus(deps.Status))
			r.Post("/{id}/status/revert", HandleRevertStatus(deps.Status))
		})
	})

	return WithRequestID(RequestLogger(CORS(deps.CORSOrigins, r), logger))
}
