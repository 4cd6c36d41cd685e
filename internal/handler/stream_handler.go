package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/service"

	"go.uber.org/zap"
)

// LiveFactory builds a fresh controller per streaming connection. Each
// connection owns its controller and subscription for its whole lifetime.
type LiveFactory func() *service.LiveController

// pushLatest delivers a summary to a lagging stream consumer. Each summary
// supersedes the previous one, so when the buffer is full the oldest entry
// is dropped and the send retried; the newest value always wins.
func pushLatest(updates chan domain.LiveSummary, s domain.LiveSummary) {
	for {
		select {
		case updates <- s:
			return
		default:
			select {
			case <-updates:
			default:
			}
		}
	}
}

// streamSummaryHandler serves GET /v1/summary/stream as Server-Sent Events.
// Every pushed event carries the full recomputed summary for the requested
// scope; clients replace their state wholesale on each event.
func streamSummaryHandler(newLive LiveFactory, loc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/summary/stream")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		scope := domain.CurrentMonthScope()
		if r.URL.Query().Get("scope") == string(domain.ScopeYear) {
			year, err := parseYear(r, time.Now(), loc)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			scope = domain.YearScope(year)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		updates := make(chan domain.LiveSummary, 8)
		controller := newLive()
		controller.Observe(func(s domain.LiveSummary) {
			pushLatest(updates, s)
		})
		controller.Attach(ctx, userID, scope)
		defer controller.Detach()

		logger.Info("summary stream opened",
			zap.String("user_id", userID),
			zap.String("scope", scope.String()),
		)

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("summary stream closed", zap.String("user_id", userID))
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case s := <-updates:
				payload, err := json.Marshal(s)
				if err != nil {
					logger.Error("stream: marshal summary failed", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: summary\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
