package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"netinventory/internal/metrics"
)

// Routes bundles everything the HTTP API serves
type Routes struct {
	Inventory *InventoryHandler
	// Events streams inventory events, usually a *hub.Hub
	Events  http.Handler
	Metrics *metrics.Registry
}

// NewAPI builds the API mux and wraps it in the standard middleware chain
func NewAPI(routes Routes, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	routes.Inventory.Register(mux)

	if routes.Events != nil {
		mux.Handle("GET /events", routes.Events)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	middlewares := []Middleware{Recover(log), CORS, Logger(log)}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics.Handler())
		middlewares = append(middlewares, Metrics(routes.Metrics))
	}
	return Chain(mux, middlewares...)
}
