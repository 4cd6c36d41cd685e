package handler

import (
	"net/http"
	"time"

	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Summaries
// ============================================================

func monthSummaryHandler(summaries *service.SummaryService, loc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary/month")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		year, month, err := parseYearMonth(r, time.Now(), loc)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		m, err := summaries.MonthSummary(ctx, userID, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, m)
	}
}

func yearSeriesHandler(summaries *service.SummaryService, loc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary/year")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		year, err := parseYear(r, time.Now(), loc)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		pts, err := summaries.YearSeries(ctx, userID, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"year":   year,
			"months": pts,
		})
	}
}

func overviewHandler(summaries *service.SummaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary/overview")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ov, err := summaries.Overview(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, ov)
	}
}

func summaryMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/metrics/summary")
		defer span.End()

		writeJSON(w, http.StatusOK, metrics.GetSummarySnapshot())
	}
}
