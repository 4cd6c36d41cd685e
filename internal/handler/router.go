package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router serves.
type Deps struct {
	Writer    *service.TransactionWriter
	Summaries *service.SummaryService
	Auth      *service.AuthService
	NewLive   LiveFactory
	Cache     port.Cache[any]
	Timezone  *time.Location
	Backend   string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Backend))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Dev token minting, gated by DEV_AUTH inside the service.
		r.Post("/auth/token", devTokenHandler(deps.Auth, logger))

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(deps.Auth, logger))

			// Transactions
			r.Post("/transactions", submitTransactionHandler(deps.Writer, deps.Cache, logger))
			r.Get("/transactions", listTransactionsHandler(deps.Summaries, deps.Timezone, logger))

			// Summaries
			r.Get("/summary/month", monthSummaryHandler(deps.Summaries, deps.Timezone, logger))
			r.Get("/summary/year", yearSeriesHandler(deps.Summaries, deps.Timezone, logger))
			r.Get("/summary/overview", overviewHandler(deps.Summaries, logger))
			r.Get("/summary/stream", streamSummaryHandler(deps.NewLive, deps.Timezone, logger))

			// Metrics snapshot for clients
			r.Get("/metrics/summary", summaryMetricsHandler(metrics, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(backend string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:  "healthy",
			Backend: backend,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// ============================================================
// Auth
// ============================================================

type devTokenRequest struct {
	UserID string `json:"userId"`
}

type devTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func devTokenHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/auth/token")
		defer span.End()

		var req devTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		token, err := authSvc.MintDevToken(req.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, devTokenResponse{AccessToken: token})
	}
}
