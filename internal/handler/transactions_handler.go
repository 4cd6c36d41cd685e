package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Transactions
// ============================================================

// submitRequest is the POST /v1/transactions body. The attachment, when
// present, is base64-encoded receipt bytes.
type submitRequest struct {
	Kind                  string `json:"kind"`
	Amount                string `json:"amount"`
	Category              string `json:"category"`
	Account               string `json:"account"`
	Note                  string `json:"note"`
	OccurredAt            string `json:"occurredAt"`
	Attachment            string `json:"attachment,omitempty"`
	AttachmentContentType string `json:"attachmentContentType,omitempty"`
}

func submitTransactionHandler(writer *service.TransactionWriter, cache port.Cache[any], logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		draft := &domain.TransactionDraft{
			Kind:     domain.Kind(req.Kind),
			Amount:   req.Amount,
			Category: req.Category,
			Account:  req.Account,
			Note:     req.Note,
		}

		if req.OccurredAt != "" {
			t, err := time.Parse(time.RFC3339, req.OccurredAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "occurredAt must be RFC 3339")
				return
			}
			draft.OccurredAt = t
		}

		if req.Attachment != "" {
			data, err := base64.StdEncoding.DecodeString(req.Attachment)
			if err != nil {
				writeError(w, http.StatusBadRequest, "attachment must be base64")
				return
			}
			draft.Attachment = data
			draft.AttachmentContentType = req.AttachmentContentType
		}

		id, err := writer.Submit(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Cached summaries predate this write.
		cache.Flush()

		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "transaction recorded", ID: id})
	}
}

func listTransactionsHandler(summaries *service.SummaryService, loc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
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

		kind := domain.Kind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.Valid() {
			writeError(w, http.StatusBadRequest, "kind must be income or expense")
			return
		}

		records, err := summaries.ListTransactions(ctx, userID, kind, year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": records,
			"count":        len(records),
		})
	}
}
