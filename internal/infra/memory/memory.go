// Package memory provides in-memory backends for local development and
// tests. The store implements the same live-query contract as the Supabase
// adapter: every write pushes a fresh full snapshot to matching
// subscriptions.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/port"
)

// Store is an in-memory transaction repository.
type Store struct {
	mu      sync.Mutex
	records map[string][]domain.TransactionRecord
	subs    map[int]*subscription
	nextSub int
	logger  *zap.Logger
}

// NewStore creates an empty in-memory store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		records: make(map[string][]domain.TransactionRecord),
		subs:    make(map[int]*subscription),
		logger:  logger,
	}
}

// Create persists the record and notifies every subscription whose filter
// matches it.
func (s *Store) Create(ctx context.Context, rec *domain.TransactionRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.records[rec.UserID] = append(s.records[rec.UserID], *rec)

	type delivery struct {
		sub  *subscription
		snap port.Snapshot
	}
	var deliveries []delivery
	for _, sub := range s.subs {
		if sub.userID != rec.UserID {
			continue
		}
		sub.seq++
		deliveries = append(deliveries, delivery{
			sub:  sub,
			snap: port.Snapshot{Seq: sub.seq, Records: s.queryLocked(sub.userID, sub.rng)},
		})
	}
	s.mu.Unlock()

	for _, d := range deliveries {
		d.sub.push(d.snap)
	}

	s.logger.Debug("memory: record created",
		zap.String("id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.Int("notified", len(deliveries)),
	)
	return rec.ID, nil
}

// Query returns the user's records, newest first.
func (s *Store) Query(ctx context.Context, userID string, rng *domain.DateRange) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(userID, rng), nil
}

func (s *Store) queryLocked(userID string, rng *domain.DateRange) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, 0, len(s.records[userID]))
	for _, rec := range s.records[userID] {
		if rng != nil && !rng.Contains(rec.OccurredAt) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

// Subscribe registers a live query. The initial snapshot is pushed
// immediately; later snapshots arrive on every matching write.
func (s *Store) Subscribe(ctx context.Context, userID string, rng *domain.DateRange) (port.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	sub := &subscription{
		userID:  userID,
		rng:     rng,
		updates: make(chan port.Snapshot, 8),
	}
	sub.unregister = func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(sub.updates)
	}
	s.subs[id] = sub
	sub.seq++
	first := port.Snapshot{Seq: sub.seq, Records: s.queryLocked(userID, rng)}
	s.mu.Unlock()

	sub.push(first)
	return sub, nil
}

type subscription struct {
	userID     string
	rng        *domain.DateRange
	seq        uint64
	updates    chan port.Snapshot
	unregister func()
	stopOnce   sync.Once

	pushMu sync.Mutex
	closed bool
}

func (s *subscription) Updates() <-chan port.Snapshot {
	return s.updates
}

func (s *subscription) Cancel() {
	s.stopOnce.Do(func() {
		s.pushMu.Lock()
		s.closed = true
		s.pushMu.Unlock()
		s.unregister()
	})
}

// push delivers without blocking a writer on a slow consumer: when the
// buffer is full the oldest pending snapshot is dropped, since the newest
// one supersedes it anyway.
func (s *subscription) push(snap port.Snapshot) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.updates <- snap:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// BlobStore is an in-memory attachment store. Returned URLs use a synthetic
// scheme; they are stable keys, not fetchable locations.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Upload stores the attachment bytes and returns a stable URL.
func (b *BlobStore) Upload(ctx context.Context, ownerID, recordID string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.ErrBlobUpload{Err: err}
	}

	key := fmt.Sprintf("%s/%s", ownerID, recordID)
	b.mu.Lock()
	b.blobs[key] = append([]byte(nil), data...)
	b.mu.Unlock()

	return "memory://attachments/" + key, nil
}

// Len reports the number of stored blobs.
func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}
