package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/service"
)

// fakeSub is a scriptable subscription: tests push snapshots through it.
type fakeSub struct {
	updates  chan port.Snapshot
	stopOnce sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{updates: make(chan port.Snapshot, 16)}
}

func (f *fakeSub) Updates() <-chan port.Snapshot { return f.updates }

func (f *fakeSub) Cancel() {
	f.stopOnce.Do(func() { close(f.updates) })
}

func (f *fakeSub) push(snap port.Snapshot) { f.updates <- snap }

var march15 = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newLiveController(repo *mockRepo) (*service.LiveController, chan domain.LiveSummary) {
	c := service.NewLiveController(repo, time.UTC, observability.NewMetrics(), zap.NewNop()).
		WithClock(func() time.Time { return march15 })
	published := make(chan domain.LiveSummary, 16)
	c.Observe(func(s domain.LiveSummary) { published <- s })
	return c, published
}

func waitPublished(t *testing.T, ch chan domain.LiveSummary) domain.LiveSummary {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a published summary")
		return domain.LiveSummary{}
	}
}

func marchRecord(category, amount string, kind domain.Kind) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:         category,
		UserID:     "u1",
		Kind:       kind,
		Amount:     decimal.RequireFromString(amount),
		Category:   category,
		Account:    "Cash",
		OccurredAt: march15,
	}
}

func TestLiveController_AppliesSnapshots(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	defer c.Detach()

	sub.push(port.Snapshot{Seq: 1, Records: []domain.TransactionRecord{
		marchRecord("Salary", "1500", domain.KindIncome),
		marchRecord("Food", "600", domain.KindExpense),
		marchRecord("Travel", "100", domain.KindExpense),
	}})

	got := waitPublished(t, published)
	if got.Degraded {
		t.Fatal("summary should not be degraded")
	}
	if got.Monthly == nil {
		t.Fatal("current-month scope must produce a monthly summary")
	}
	if got.Monthly.TotalIncome.String() != "1500" {
		t.Errorf("income: expected 1500, got %s", got.Monthly.TotalIncome)
	}
	if got.Monthly.TotalExpense.String() != "700" {
		t.Errorf("expense: expected 700, got %s", got.Monthly.TotalExpense)
	}
	if got.Monthly.Balance.String() != "800" {
		t.Errorf("balance: expected 800, got %s", got.Monthly.Balance)
	}
	if c.State() != service.StateActive {
		t.Errorf("expected Active after first snapshot, got %s", c.State())
	}
}

func TestLiveController_YearScope(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.YearScope(2024))
	defer c.Detach()

	sub.push(port.Snapshot{Seq: 1, Records: []domain.TransactionRecord{
		marchRecord("Salary", "1000", domain.KindIncome),
	}})

	got := waitPublished(t, published)
	if len(got.Yearly) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(got.Yearly))
	}
	if got.Yearly[2].Income.String() != "1000" {
		t.Errorf("march bucket income: expected 1000, got %s", got.Yearly[2].Income)
	}
	if got.Monthly != nil {
		t.Error("year scope must not produce a monthly summary")
	}
}

func TestLiveController_DropsStaleSnapshot(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	defer c.Detach()

	sub.push(port.Snapshot{Seq: 2, Records: []domain.TransactionRecord{
		marchRecord("Food", "100", domain.KindExpense),
	}})
	// Delivered late after a reconnect; must be dropped.
	sub.push(port.Snapshot{Seq: 1, Records: []domain.TransactionRecord{
		marchRecord("Stale", "999", domain.KindExpense),
	}})
	sub.push(port.Snapshot{Seq: 3, Records: []domain.TransactionRecord{
		marchRecord("Food", "100", domain.KindExpense),
		marchRecord("Rent", "500", domain.KindExpense),
	}})

	first := waitPublished(t, published)
	if first.Seq != 2 {
		t.Fatalf("expected seq 2 first, got %d", first.Seq)
	}
	second := waitPublished(t, published)
	if second.Seq != 3 {
		t.Fatalf("stale seq 1 should be dropped, next published must be seq 3, got %d", second.Seq)
	}
	if second.Monthly.TotalExpense.String() != "600" {
		t.Errorf("expected expense 600 from seq 3, got %s", second.Monthly.TotalExpense)
	}
}

func TestLiveController_SnapshotErrorPublishesEmptyDegraded(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	defer c.Detach()

	sub.push(port.Snapshot{Seq: 1, Err: errors.New("listener dropped")})

	got := waitPublished(t, published)
	if !got.Degraded {
		t.Fatal("expected a degraded summary")
	}
	if !got.Monthly.TotalIncome.IsZero() || !got.Monthly.TotalExpense.IsZero() {
		t.Error("degraded summary must be zeroed, never stale")
	}
	if len(got.Monthly.CategoryBreakdown) != 0 {
		t.Error("degraded summary must have an empty breakdown")
	}
}

func TestLiveController_SubscribeFailure(t *testing.T) {
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return nil, errors.New("store unreachable")
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.YearScope(2024))

	got := waitPublished(t, published)
	if !got.Degraded {
		t.Fatal("expected a degraded summary on subscribe failure")
	}
	if len(got.Yearly) != 12 {
		t.Fatalf("degraded year summary still has 12 buckets, got %d", len(got.Yearly))
	}
	if c.State() != service.StateIdle {
		t.Errorf("controller must stay Idle after subscribe failure, got %s", c.State())
	}
}

func TestLiveController_ReattachCancelsPrevious(t *testing.T) {
	sub1 := newFakeSub()
	sub2 := newFakeSub()
	subs := []port.Subscription{sub1, sub2}
	var calls int
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		s := subs[calls]
		calls++
		return s, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	sub1.push(port.Snapshot{Seq: 1, Records: nil})
	waitPublished(t, published)

	// Re-attach with a new scope. By the time Attach returns, the old
	// consumer loop has exited, so nothing from sub1 can publish again.
	c.Attach(context.Background(), "u1", domain.YearScope(2024))
	defer c.Detach()

	if calls != 2 {
		t.Fatalf("expected 2 subscribe calls, got %d", calls)
	}

	sub2.push(port.Snapshot{Seq: 1, Records: nil})
	got := waitPublished(t, published)
	if got.Scope.Kind != domain.ScopeYear {
		t.Fatalf("expected the new scope's summary, got %s", got.Scope)
	}
	// The seq counter restarted with the new subscription and was accepted.
	if got.Seq != 1 {
		t.Errorf("expected seq 1 from the fresh subscription, got %d", got.Seq)
	}

	select {
	case extra := <-published:
		t.Fatalf("unexpected extra publish: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

// slowCancelSub keeps delivering until Cancel completes, and Cancel itself
// takes a while. Attach must wait it out; nothing from the old subscription
// may be published after the new one is issued.
type slowCancelSub struct {
	updates  chan port.Snapshot
	stopOnce sync.Once
}

func (s *slowCancelSub) Updates() <-chan port.Snapshot { return s.updates }

func (s *slowCancelSub) Cancel() {
	s.stopOnce.Do(func() {
		time.Sleep(50 * time.Millisecond)
		close(s.updates)
	})
}

func TestLiveController_SlowCancelNeverDoublePublishes(t *testing.T) {
	old := &slowCancelSub{updates: make(chan port.Snapshot, 16)}
	fresh := newFakeSub()
	subs := []port.Subscription{old, fresh}
	var calls int
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		s := subs[calls]
		calls++
		return s, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	old.updates <- port.Snapshot{Seq: 1, Records: nil}
	waitPublished(t, published)

	c.Attach(context.Background(), "u1", domain.YearScope(2024))
	defer c.Detach()

	fresh.push(port.Snapshot{Seq: 1, Records: nil})

	got := waitPublished(t, published)
	if got.Scope.Kind != domain.ScopeYear {
		t.Fatalf("expected only the new scope's summary after re-attach, got %s", got.Scope)
	}
	select {
	case extra := <-published:
		t.Fatalf("old subscription published after re-attach: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveController_DetachIsIdempotent(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, _ := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	c.Detach()
	c.Detach()

	if c.State() != service.StateIdle {
		t.Errorf("expected Idle after detach, got %s", c.State())
	}
}

func TestLiveController_ObserveReplaysLatest(t *testing.T) {
	sub := newFakeSub()
	repo := &mockRepo{subFunc: func(context.Context, string, *domain.DateRange) (port.Subscription, error) {
		return sub, nil
	}}
	c, published := newLiveController(repo)

	c.Attach(context.Background(), "u1", domain.CurrentMonthScope())
	defer c.Detach()

	sub.push(port.Snapshot{Seq: 1, Records: []domain.TransactionRecord{
		marchRecord("Food", "10", domain.KindExpense),
	}})
	waitPublished(t, published)

	late := make(chan domain.LiveSummary, 1)
	c.Observe(func(s domain.LiveSummary) { late <- s })

	got := waitPublished(t, late)
	if got.Monthly == nil || got.Monthly.TotalExpense.String() != "10" {
		t.Fatalf("late observer should see the latest summary, got %+v", got)
	}
}
