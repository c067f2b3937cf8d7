package checkout

import (
	"net/http"

	"ravepay/internal/logger"
	"ravepay/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the checkout routes behind request-id, access log and
// rate limit middleware. /metrics is served without rate limiting.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware)
		r.Post("/pay", h.Pay)
		r.Get("/callback", h.Callback)
		r.Get("/requery/{txref}", h.Requery)
	})

	return r
}
