package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/port"
)

var writerTracer = otel.Tracer("service/writer")

// TransactionWriter validates and persists new transaction records,
// uploading the optional receipt attachment first so the persisted record
// can reference the resulting URL.
type TransactionWriter struct {
	repo          port.TransactionRepository
	blobs         port.BlobStore
	identity      port.Identity
	submitTimeout time.Duration
	uploadTimeout time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewTransactionWriter creates the write service with all dependencies
// injected.
func NewTransactionWriter(
	repo port.TransactionRepository,
	blobs port.BlobStore,
	identity port.Identity,
	submitTimeout, uploadTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionWriter {
	return &TransactionWriter{
		repo:          repo,
		blobs:         blobs,
		identity:      identity,
		submitTimeout: submitTimeout,
		uploadTimeout: uploadTimeout,
		metrics:       metrics,
		logger:        logger,
	}
}

// Submit validates the draft and persists exactly one new record, returning
// its id.
//
// Policy for attachments: upload first, then persist the record referencing
// the URL. An upload failure fails the whole submit with no record created.
// A persistence failure after a successful upload leaves an orphaned blob;
// that is logged and accepted, never retried.
//
// Cancelling ctx cancels the caller's wait, but once the store write has
// been issued it runs to completion on a detached context. The store offers
// no partial-write rollback, so an issued write either completes or fails.
func (w *TransactionWriter) Submit(ctx context.Context, draft *domain.TransactionDraft) (string, error) {
	ctx, span := writerTracer.Start(ctx, "TransactionWriter.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.kind", string(draft.Kind)))

	start := time.Now()
	defer func() {
		w.metrics.RecordSubmitDuration(time.Since(start))
	}()

	userID, ok := w.identity.CurrentUserID(ctx)
	if !ok {
		w.metrics.IncrSubmit("unauthenticated")
		return "", &domain.ErrNotAuthenticated{}
	}

	rec, err := w.validate(userID, draft)
	if err != nil {
		w.metrics.IncrSubmit("invalid")
		return "", err
	}

	uploaded := false
	if len(draft.Attachment) > 0 {
		url, err := w.uploadAttachment(ctx, userID, rec.ID, draft)
		if err != nil {
			w.metrics.IncrSubmit("upload_failed")
			w.metrics.IncrBlobUpload("error")
			return "", err
		}
		rec.AttachmentURL = url
		uploaded = true
		w.metrics.IncrBlobUpload("ok")
	}

	id, err := w.persist(ctx, rec)
	if err != nil {
		if uploaded {
			// Orphaned blob: acceptable leak, cleanup is out of band.
			w.logger.Warn("submit: record persist failed after attachment upload",
				zap.String("user_id", userID),
				zap.String("record_id", rec.ID),
				zap.String("attachment_url", rec.AttachmentURL),
				zap.Error(err),
			)
		}
		w.metrics.IncrSubmit("persist_failed")
		return "", err
	}

	w.logger.Info("transaction recorded",
		zap.String("user_id", userID),
		zap.String("record_id", id),
		zap.String("kind", string(rec.Kind)),
		zap.String("category", rec.Category),
	)
	w.metrics.IncrSubmit("ok")
	return id, nil
}

// validate applies all local input checks before any I/O. The record id is
// generated here so the blob object key can reference it before persist.
func (w *TransactionWriter) validate(userID string, draft *domain.TransactionDraft) (*domain.TransactionRecord, error) {
	if !draft.Kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be income or expense"}
	}
	amount, err := domain.ParseAmount(draft.Amount)
	if err != nil {
		return nil, err
	}
	if draft.Category == "" {
		return nil, &domain.ErrValidation{Field: "category", Message: "required"}
	}
	if draft.Account == "" {
		return nil, &domain.ErrValidation{Field: "account", Message: "required"}
	}
	if draft.OccurredAt.IsZero() {
		return nil, &domain.ErrValidation{Field: "occurred_at", Message: "required"}
	}
	if len(draft.Attachment) > 0 && draft.AttachmentContentType == "" {
		return nil, &domain.ErrValidation{Field: "attachment_content_type", Message: "required when attachment is set"}
	}

	return &domain.TransactionRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Kind:       draft.Kind,
		Amount:     amount,
		Category:   draft.Category,
		Account:    draft.Account,
		Note:       draft.Note,
		OccurredAt: draft.OccurredAt,
	}, nil
}

func (w *TransactionWriter) uploadAttachment(ctx context.Context, userID, recordID string, draft *domain.TransactionDraft) (string, error) {
	ctx, span := writerTracer.Start(ctx, "TransactionWriter.uploadAttachment")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, w.uploadTimeout)
	defer cancel()

	url, err := w.blobs.Upload(ctx, userID, recordID, draft.Attachment, draft.AttachmentContentType)
	if err != nil {
		return "", &domain.ErrBlobUpload{Err: err}
	}
	return url, nil
}

// persist issues the store write on a context detached from the caller's
// cancellation, bounded only by the submit timeout. The select below lets
// the caller stop waiting without aborting the write.
func (w *TransactionWriter) persist(ctx context.Context, rec *domain.TransactionRecord) (string, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.submitTimeout)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer cancel()
		id, err := w.repo.Create(writeCtx, rec)
		done <- result{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			if writeCtx.Err() == context.DeadlineExceeded {
				return "", &domain.ErrPersistence{Op: "create", Err: &domain.ErrTimeout{Operation: "create transaction"}}
			}
			return "", &domain.ErrPersistence{Op: "create", Err: res.err}
		}
		return res.id, nil
	}
}
