package supabase

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/resilience"
	"github.com/san2804/finguard-go/internal/port"
)

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Account       string          `json:"account"`
	Note          string          `json:"note"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AttachmentURL string          `json:"attachment_url"`
}

func (r transactionRow) toDomain() domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:            r.ID,
		UserID:        r.UserID,
		Kind:          domain.Kind(r.Kind),
		Amount:        r.Amount,
		Category:      r.Category,
		Account:       r.Account,
		Note:          r.Note,
		OccurredAt:    r.OccurredAt,
		AttachmentURL: r.AttachmentURL,
	}
}

// Create inserts a new transaction record via PostgREST.
func (c *Client) Create(ctx context.Context, rec *domain.TransactionRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", rec.ID))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return "", &domain.ErrPersistence{Op: "create", Err: err}
	}
	defer c.bulkhead.Release()

	data := map[string]any{
		"id":          rec.ID,
		"user_id":     rec.UserID,
		"kind":        string(rec.Kind),
		"amount":      rec.Amount.String(),
		"category":    rec.Category,
		"account":     rec.Account,
		"note":        rec.Note,
		"occurred_at": rec.OccurredAt.UTC().Format(time.RFC3339),
	}
	if rec.AttachmentURL != "" {
		data["attachment_url"] = rec.AttachmentURL
	}

	var inserted []transactionRow
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doPost(ctx, "transactions", data)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(body, &inserted); err != nil {
				return fmt.Errorf("decode inserted transaction: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return "", &domain.ErrPersistence{Op: "create", Err: err}
	}
	if len(inserted) == 0 {
		return rec.ID, nil
	}
	return inserted[0].ID, nil
}

// Query fetches the user's records, newest first, optionally bounded to a
// half-open occurred-at window.
func (c *Client) Query(ctx context.Context, userID string, rng *domain.DateRange) ([]domain.TransactionRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.QueryTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrPersistence{Op: "query", Err: err}
	}
	defer c.bulkhead.Release()

	// User ids are uuids in practice, but escape anyway so a hostile id
	// cannot smuggle extra PostgREST filter syntax into the path.
	path := fmt.Sprintf("transactions?user_id=eq.%s&order=occurred_at.desc", url.QueryEscape(userID))
	if rng != nil {
		path += fmt.Sprintf("&occurred_at=gte.%s&occurred_at=lt.%s",
			rng.Start.UTC().Format(time.RFC3339),
			rng.End.UTC().Format(time.RFC3339),
		)
	}

	var records []domain.TransactionRecord
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil {
				records = []domain.TransactionRecord{}
				return nil
			}

			var rows []transactionRow
			// A row that fails to decode fails the whole query. A silently
			// dropped record would make every summary built from this result
			// wrong, which is worse than an error the caller can see.
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode transactions: %w", err)
			}

			records = make([]domain.TransactionRecord, 0, len(rows))
			for _, r := range rows {
				records = append(records, r.toDomain())
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "query", Err: err}
	}
	return records, nil
}

// Subscribe opens a polling live query: the store is re-queried every poll
// interval and a full snapshot is pushed whenever the result set changed.
// The first snapshot is pushed as soon as the initial query completes.
func (c *Client) Subscribe(ctx context.Context, userID string, rng *domain.DateRange) (port.Subscription, error) {
	_, span := tracer.Start(ctx, "Supabase.Subscribe")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	// The watcher outlives the attach call; its lifetime is bound to
	// Cancel, not to the caller's context.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &pollingSubscription{
		updates: make(chan port.Snapshot, 1),
		cancel:  cancel,
	}
	go c.poll(watchCtx, sub, userID, rng)
	return sub, nil
}

// poll drives one subscription. Snapshots carry a monotonically increasing
// sequence number; a push happens only when the fetched rows differ from the
// previous push.
func (c *Client) poll(ctx context.Context, sub *pollingSubscription, userID string, rng *domain.DateRange) {
	defer close(sub.updates)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var seq uint64
	var lastDigest [sha256.Size]byte

	fetch := func() {
		records, err := c.Query(ctx, userID, rng)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("supabase: live poll failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			seq++
			sub.push(ctx, port.Snapshot{Seq: seq, Err: err})
			// Consumers fall back to an empty summary on an error snapshot.
			// Forget the digest so the next successful fetch pushes even
			// when the rows did not change in the meantime.
			lastDigest = [sha256.Size]byte{}
			return
		}

		digest := digestRecords(records)
		if seq > 0 && digest == lastDigest {
			return
		}
		lastDigest = digest
		seq++
		sub.push(ctx, port.Snapshot{Seq: seq, Records: records})
	}

	fetch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetch()
		}
	}
}

// digestRecords fingerprints a result set so unchanged polls push nothing.
func digestRecords(records []domain.TransactionRecord) [sha256.Size]byte {
	raw, err := json.Marshal(records)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(raw)
}

type pollingSubscription struct {
	updates  chan port.Snapshot
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func (s *pollingSubscription) Updates() <-chan port.Snapshot {
	return s.updates
}

func (s *pollingSubscription) Cancel() {
	s.stopOnce.Do(s.cancel)
}

// push delivers a snapshot without blocking forever on a consumer that is
// mid-cancel. The channel is buffered; a snapshot superseded before delivery
// is replaced by draining the stale one first.
func (s *pollingSubscription) push(ctx context.Context, snap port.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
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
