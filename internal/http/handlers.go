package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/export"
	"github.com/kjstillabower/weather-record-service/internal/lifecycle"
	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/service"
	"github.com/kjstillabower/weather-record-service/internal/store"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Pinger reports storage reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	records *service.RecordService
	fetcher *service.FetchService
	db      Pinger
	logger  *zap.Logger
}

// NewHandler returns a new Handler. db may be nil, in which case /health
// does not check storage.
func NewHandler(records *service.RecordService, fetcher *service.FetchService, db Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		records: records,
		fetcher: fetcher,
		db:      db,
		logger:  logger,
	}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Weather Record Service",
		"version": Version,
		"health":  "OK",
	})
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, statusCode := "healthy", http.StatusOK
	checks := map[string]string{}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.db.Ping(ctx)
		cancel()
		if err != nil {
			checks["database"] = "unhealthy"
			status, statusCode = "unhealthy", http.StatusServiceUnavailable
			observability.LoggerFromContext(r.Context(), h.logger).Warn("database ping failed", zap.Error(err))
		} else {
			checks["database"] = "healthy"
		}
	}
	if lifecycle.IsShuttingDown() {
		status, statusCode = "shutting-down", http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   observability.ServiceName,
		"version":   Version,
		"checks":    checks,
		"uptime":    lifecycle.Uptime().String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateRecord handles POST /api/weather.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var in models.RecordCreate
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := h.records.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListRecords handles GET /api/weather?skip=&limit=&location=.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_PARAMETER", err.Error())
		return
	}
	limit, err := queryInt(r, "limit", validation.DefaultPageLimit)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_PARAMETER", err.Error())
		return
	}

	records, err := h.records.List(r.Context(), service.ListParams{
		Skip:     skip,
		Limit:    limit,
		Location: r.URL.Query().Get("location"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetRecord handles GET /api/weather/{id}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PUT /api/weather/{id}. Only fields present and
// non-null in the body are changed.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var in models.RecordUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	rec, err := h.records.Update(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/weather/{id}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.records.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportJSON handles GET /api/weather/export/json.
func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ExportCSV handles GET /api/weather/export/csv. An empty store yields an
// empty body.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		writeServiceError(w, r, fmt.Errorf("encode csv: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// FetchRange handles GET /api/weather/fetch-range?location=&start_date=&end_date=.
func (h *Handler) FetchRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.fetcher.FetchRange(r.Context(), q.Get("location"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// NotFound is the JSON 404 for unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found")
}

// MethodNotAllowed is the JSON 405 for a known path with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// recordID parses the {id} path variable. An id too large to exist is a 404.
func recordID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Weather record not found")
		return 0, false
	}
	return uint(id), true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: must be an integer", name)
	}
	return n, nil
}

// decodeBody decodes a JSON body into v, writing a 422 on failure. Values of
// the wrong type or format are reported against their field.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(v)
	if err == nil {
		return true
	}

	var fieldErr *models.FieldError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &fieldErr):
		writeFieldError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", fieldErr.Field, fieldErr.Error())
	case errors.As(err, &typeErr) && typeErr.Field != "":
		writeFieldError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", typeErr.Field,
			fmt.Sprintf("%s: must be of type %s", typeErr.Field, typeErr.Type))
	case errors.Is(err, io.EOF):
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_BODY", "request body is required")
	default:
		writeError(w, r, http.StatusUnprocessableEntity, "INVALID_BODY", "invalid JSON body: "+err.Error())
	}
	return false
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeFieldError(w, r, status, code, "", message)
}

// writeFieldError is writeError with the offending request field named.
func writeFieldError(w http.ResponseWriter, r *http.Request, status int, code, field, message string) {
	body := map[string]string{
		"code":      code,
		"message":   message,
		"requestId": observability.CorrelationIDFromContext(r.Context()),
	}
	if field != "" {
		body["field"] = field
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}

// writeServiceError maps service and store errors to HTTP responses.
// Unexpected errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context(), nil)

	var verr *validation.Error
	var rerr *validation.RangeError
	switch {
	case errors.As(err, &verr):
		writeFieldError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", verr.Field, verr.Error())
	case errors.As(err, &rerr):
		writeError(w, r, http.StatusBadRequest, rerr.Code, rerr.Message)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Weather record not found")
	case errors.Is(err, service.ErrNotConfigured):
		logger.Error("range fetch rejected", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Weather API key not configured")
	case errors.Is(err, service.ErrUpstream):
		writeError(w, r, http.StatusInternalServerError, "UPSTREAM_ERROR", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request timed out", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "TIMEOUT", "request timed out")
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
