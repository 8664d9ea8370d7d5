package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentalhub/internal/database"
	"rentalhub/internal/lock"
	"rentalhub/internal/pgstore"
	"rentalhub/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// statusFor maps a service error onto the HTTP status returned to the caller.
func statusFor(err error) int {
	var (
		stock    *service.InsufficientStockError
		inUse    *service.InUseError
		stockCut *service.StockBelowCommittedError
	)
	switch {
	case errors.As(err, &stock), errors.As(err, &inUse), errors.As(err, &stockCut):
		return http.StatusConflict
	case service.IsNotFound(err):
		return http.StatusNotFound
	case service.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, database.ErrConcurrentModification), errors.Is(err, pgstore.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		requestLogger(r, s.logger).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}

	body := map[string]any{"error": err.Error()}
	var stock *service.InsufficientStockError
	if errors.As(err, &stock) {
		body["product_id"] = stock.ProductID
		body["requested"] = stock.Requested
		body["available"] = stock.Available
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.InvalidFieldError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}

// parseBound accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseBound(field, raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &service.InvalidFieldError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &service.InvalidFieldError{Field: field, Reason: "expected YYYY-MM-DD or RFC3339"}
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &service.InvalidFieldError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

func requestLogger(r *http.Request, base *zerolog.Logger) *zerolog.Logger {
	l := base.With().Str("request_id", requestIDFrom(r.Context())).Logger()
	return &l
}
