// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/san2804/finguard-go/internal/domain"
)

// Snapshot is one full point-in-time result set pushed by the store. Every
// push replaces the previous one entirely; there are no incremental diffs.
// Seq increases monotonically per subscription so consumers can discard
// out-of-order deliveries after reconnects. Err is set instead of Records
// when the listener itself failed.
type Snapshot struct {
	Seq     uint64
	Records []domain.TransactionRecord
	Err     error
}

// Subscription is a cancellable live query handle.
type Subscription interface {
	// Updates delivers snapshots until Cancel is called, after which the
	// channel is closed.
	Updates() <-chan Snapshot
	// Cancel stops delivery. Safe to call more than once.
	Cancel()
}

// TransactionRepository is the store for transaction records. Implemented by
// the Supabase adapter and by the in-memory backend.
type TransactionRepository interface {
	// Create persists a new record and returns its id. The record's ID
	// field, when set, is honored by the store.
	Create(ctx context.Context, rec *domain.TransactionRecord) (string, error)

	// Query returns the user's records, newest first, optionally limited to
	// a half-open occurred-at window.
	Query(ctx context.Context, userID string, rng *domain.DateRange) ([]domain.TransactionRecord, error)

	// Subscribe opens a live query over the same filter. The store pushes a
	// full snapshot on every relevant change; the first snapshot arrives
	// without any change having happened.
	Subscribe(ctx context.Context, userID string, rng *domain.DateRange) (Subscription, error)
}

// BlobStore uploads receipt attachments and returns a stable URL.
type BlobStore interface {
	Upload(ctx context.Context, ownerID, recordID string, data []byte, contentType string) (string, error)
}

// Identity yields the authenticated user id for the current request, if any.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Cache provides generic caching with TTL. Flush drops everything; callers
// use it to invalidate derived summaries after a write.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Flush()
}
