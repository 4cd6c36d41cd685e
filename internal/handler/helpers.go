package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/san2804/finguard-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseYearMonth reads ?year= and ?month= query params, defaulting to the
// current month in the given zone.
func parseYearMonth(r *http.Request, now time.Time, loc *time.Location) (int, time.Month, error) {
	local := now.In(loc)
	year := local.Year()
	month := local.Month()

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return 0, 0, &domain.ErrValidation{Field: "year", Message: "must be a positive integer"}
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, &domain.ErrValidation{Field: "month", Message: "must be 1..12"}
		}
		month = time.Month(m)
	}
	return year, month, nil
}

func parseYear(r *http.Request, now time.Time, loc *time.Location) (int, error) {
	year := now.In(loc).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return 0, &domain.ErrValidation{Field: "year", Message: "must be a positive integer"}
		}
		year = y
	}
	return year, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var notAuth *domain.ErrNotAuthenticated
	var unauthorized *domain.ErrUnauthorized
	var notFound *domain.ErrNotFound
	var blobUpload *domain.ErrBlobUpload
	var persistence *domain.ErrPersistence
	var subscription *domain.ErrSubscription
	var timeout *domain.ErrTimeout
	var circuitOpen *domain.ErrCircuitOpen

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notAuth):
		logger.Warn("not authenticated", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &blobUpload):
		logger.Error("attachment upload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &persistence):
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("store timeout", zap.Error(err))
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		logger.Error("store error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &subscription):
		logger.Error("subscription error", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		logger.Debug("request cancelled")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
