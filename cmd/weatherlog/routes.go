package main

import (
	"net/http"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sguter90/weatherlog/pkg/pusher"
)

// RouteManager handles all API routes
type RouteManager struct {
	app      *app
	registry *pusher.Registry
	logger   kitlog.Logger
	Router   *mux.Router
}

// NewRouteManager creates a new RouteManager instance
func NewRouteManager(a *app, registry *pusher.Registry) *RouteManager {
	return &RouteManager{
		app:      a,
		registry: registry,
		logger:   kitlog.With(a.logger, "module", "http"),
		Router:   mux.NewRouter(),
	}
}

// Setup configures all API routes
func (rm *RouteManager) Setup() {
	r := rm.Router
	r.Use(rm.requestMiddleware)
	r.Use(rm.corsMiddleware)

	// Global OPTIONS handler - catches all preflight requests
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/", rm.rootHandler).Methods(http.MethodGet)

	// Station upload endpoints
	rm.setupPusherEndpoints(r)

	// Read API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/latest", rm.latestHandler).Methods(http.MethodGet)
	api.HandleFunc("/latest_raw", rm.latestRawHandler).Methods(http.MethodGet)
	api.HandleFunc("/history", rm.historyHandler).Methods(http.MethodGet)
	api.HandleFunc("/history_raw", rm.historyRawHandler).Methods(http.MethodGet)
	api.HandleFunc("/export.csv", rm.exportHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", rm.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/stats", rm.statsHandler).Methods(http.MethodGet)

	// Admin endpoints (auth required)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(rm.JWTAuthMiddleware)
	protected.HandleFunc("/archive", rm.archiveHandler).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// unmatched requests bypass router middleware
	r.NotFoundHandler = rm.corsMiddleware(http.HandlerFunc(notFoundHandler))
	r.MethodNotAllowedHandler = rm.corsMiddleware(http.HandlerFunc(methodNotAllowedHandler))
}

// setupPusherEndpoints registers one upload endpoint per station protocol
func (rm *RouteManager) setupPusherEndpoints(r *mux.Router) {
	for _, p := range rm.registry.All() {
		endpoint := p.GetEndpoint()
		level.Info(rm.logger).Log("msg", "registering endpoint", "endpoint", endpoint, "station_type", p.GetStationType())
		r.HandleFunc(endpoint, rm.ingestHandler(p)).Methods(http.MethodGet, http.MethodPost)
	}
}
