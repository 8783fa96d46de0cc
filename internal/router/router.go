package router

import (
	"net/http"

	"github.com/shelfmail/shelfmail/internal/handler"
	"github.com/shelfmail/shelfmail/internal/middleware"
)

// New builds the ops router: health probes plus the metrics scrape endpoint.
// metricsHandler may be nil when metrics are disabled.
func New(h *handler.Handler, mw *middleware.Middleware, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	var handler http.Handler = mux
	handler = mw.Logger(handler)
	handler = mw.RequestID(handler)
	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
