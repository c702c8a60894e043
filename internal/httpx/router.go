package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires the collaborator-facing routes. The whole router is
// wrapped in otelhttp so every request carries a server span, which the
// slog ContextHandler then stamps onto log lines.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/{id}", handler.GetOrder)
		r.Get("/{id}/fees", handler.GetOrderFees)
		r.Post("/{id}/transition", handler.TransitionOrder)
		r.Post("/{id}/cancel", handler.CancelOrder)
	})

	r.Route("/tips", func(r chi.Router) {
		r.Post("/", handler.SendTip)
		r.Get("/pending", handler.ListPendingTips)
		r.Get("/{id}", handler.GetTip)
		r.Post("/{id}/settlement", handler.TipSettlement)
	})

	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/tips", handler.ListUserTips)
		r.Get("/tips/total", handler.GetUserTipTotal)
	})

	return otelhttp.NewHandler(r, "order-ledger")
}
