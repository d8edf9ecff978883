package http

import (
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// RouterConfig holds the cross-cutting settings applied by NewRouter.
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	// Limiter guards /api/weather; nil disables rate limiting.
	Limiter *rate.Limiter
	// InFlight counts requests for shutdown draining.
	InFlight *InFlightTracker
}

// NewRouter wires every route behind the correlation, metrics, and CORS
// middleware. Routes under /api/weather are also rate limited and time bounded.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(h.NotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware(cfg.InFlight))

	router.HandleFunc("/", h.Root).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/weather").Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	for _, root := range []string{"", "/"} {
		api.HandleFunc(root, h.CreateRecord).Methods(http.MethodPost)
		api.HandleFunc(root, h.ListRecords).Methods(http.MethodGet)
	}
	api.HandleFunc("/export/json", h.ExportJSON).Methods(http.MethodGet)
	api.HandleFunc("/export/csv", h.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/fetch-range", h.FetchRange).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.UpdateRecord).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}", h.DeleteRecord).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept", "X-Correlation-ID"}),
		handlers.ExposedHeaders([]string{"X-Correlation-ID", "Content-Disposition"}),
		handlers.AllowCredentials(),
	)
	return cors(router)
}
