package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/summary"
)

var liveTracer = otel.Tracer("service/live")

// ControllerState is the lifecycle of a live controller's subscription.
type ControllerState string

const (
	StateIdle        ControllerState = "idle"
	StateSubscribing ControllerState = "subscribing"
	StateActive      ControllerState = "active"
)

// LiveController owns at most one live subscription at a time and turns the
// store's snapshot pushes into published summaries. Each view that needs a
// live summary runs its own controller instance; instances share nothing but
// the repository.
//
// Attach and Detach are serialized by a mutex: overlapping calls on the same
// instance would otherwise leak subscriptions or publish twice. A new attach
// fully cancels the previous subscription, including waiting for its
// consumer goroutine to exit, before subscribing to the new scope.
type LiveController struct {
	repo    port.TransactionRepository
	loc     *time.Location
	clock   func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	sub      port.Subscription
	loopDone chan struct{}

	// state is atomic so the consumer loop can flip it to Active without
	// touching c.mu, which Detach holds while waiting for that loop to exit.
	state atomic.Value

	obsMu     sync.Mutex
	observers []func(domain.LiveSummary)
	latest    *domain.LiveSummary
}

// NewLiveController creates a controller bound to the canonical timezone.
func NewLiveController(repo port.TransactionRepository, loc *time.Location, metrics *observability.Metrics, logger *zap.Logger) *LiveController {
	c := &LiveController{
		repo:    repo,
		loc:     loc,
		clock:   time.Now,
		metrics: metrics,
		logger:  logger,
	}
	c.state.Store(StateIdle)
	return c
}

// WithClock overrides the time source. Used by tests to pin "current month".
func (c *LiveController) WithClock(clock func() time.Time) *LiveController {
	c.clock = clock
	return c
}

// Observe registers a callback invoked with every published summary. The
// latest summary, if any, is replayed immediately so late observers don't
// wait for the next push.
func (c *LiveController) Observe(fn func(domain.LiveSummary)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
	if c.latest != nil {
		fn(*c.latest)
	}
}

// Latest returns the most recently published summary, if any.
func (c *LiveController) Latest() (domain.LiveSummary, bool) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if c.latest == nil {
		return domain.LiveSummary{}, false
	}
	return *c.latest, true
}

// State reports the controller's lifecycle state.
func (c *LiveController) State() ControllerState {
	return c.state.Load().(ControllerState)
}

// Attach subscribes to the given user and scope, replacing any previous
// subscription. A failed subscribe call is absorbed: observers get a zeroed
// summary flagged degraded and the controller stays Idle. The store must be
// re-attached whenever the user id changes.
func (c *LiveController) Attach(ctx context.Context, userID string, scope domain.Scope) {
	ctx, span := liveTracer.Start(ctx, "LiveController.Attach")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Cancellation of the old subscription must complete before the new
	// subscribe is issued, so two subscriptions never run at once.
	c.detachLocked()

	rng := scope.Range(c.clock(), c.loc)
	sub, err := c.repo.Subscribe(ctx, userID, &rng)
	if err != nil {
		c.logger.Warn("live: subscribe failed, publishing empty summary",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		c.metrics.IncrSubscriptionError(string(scope.Kind))
		c.publish(emptySummary(scope, 0, true))
		return
	}

	c.state.Store(StateSubscribing)
	c.sub = sub
	c.loopDone = make(chan struct{})
	go c.consume(sub, userID, scope, c.loopDone)
}

// Detach cancels the active subscription. Calling it while Idle is a no-op.
func (c *LiveController) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachLocked()
}

// detachLocked cancels the current subscription and waits for its consumer
// loop to finish. Caller holds c.mu; the consumer loop never takes c.mu, so
// waiting here cannot deadlock.
func (c *LiveController) detachLocked() {
	if c.sub == nil {
		return
	}
	c.sub.Cancel()
	<-c.loopDone
	c.sub = nil
	c.loopDone = nil
	c.state.Store(StateIdle)
}

// consume drains one subscription's snapshots until it is cancelled. Every
// snapshot is authoritative: the summary is recomputed from scratch and
// fully replaces the previous one. Snapshots whose sequence number is not
// greater than the last applied one are dropped; store push order is not
// guaranteed across reconnects.
func (c *LiveController) consume(sub port.Subscription, userID string, scope domain.Scope, done chan struct{}) {
	defer close(done)

	var lastApplied uint64
	for snap := range sub.Updates() {
		if snap.Err != nil {
			c.logger.Warn("live: snapshot error, publishing empty summary",
				zap.String("user_id", userID),
				zap.String("scope", scope.String()),
				zap.Error(&domain.ErrSubscription{Err: snap.Err}),
			)
			c.metrics.IncrSubscriptionError(string(scope.Kind))
			c.publish(emptySummary(scope, snap.Seq, true))
			continue
		}
		if snap.Seq <= lastApplied && lastApplied != 0 {
			c.logger.Debug("live: dropping stale snapshot",
				zap.Uint64("seq", snap.Seq),
				zap.Uint64("last_applied", lastApplied),
			)
			c.metrics.IncrStaleSnapshot(string(scope.Kind))
			continue
		}
		lastApplied = snap.Seq
		c.state.Store(StateActive)
		c.publish(c.recompute(scope, snap))
		c.metrics.IncrSnapshotApplied(string(scope.Kind))
	}
}

// recompute runs the aggregation engine over a full snapshot.
func (c *LiveController) recompute(scope domain.Scope, snap port.Snapshot) domain.LiveSummary {
	out := domain.LiveSummary{Scope: scope, Seq: snap.Seq}
	switch scope.Kind {
	case domain.ScopeYear:
		out.Yearly = summary.SummarizeYear(snap.Records, scope.Year, c.loc)
	default:
		start, end := summary.MonthBounds(c.clock(), c.loc)
		monthly := summary.SummarizeMonth(snap.Records, start, end)
		out.Monthly = &monthly
	}
	return out
}

func (c *LiveController) publish(s domain.LiveSummary) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.latest = &s
	for _, fn := range c.observers {
		fn(s)
	}
}

// emptySummary is what observers see instead of stale data when the
// subscription fails: all totals zeroed, empty breakdown.
func emptySummary(scope domain.Scope, seq uint64, degraded bool) domain.LiveSummary {
	out := domain.LiveSummary{Scope: scope, Seq: seq, Degraded: degraded}
	if scope.Kind == domain.ScopeYear {
		points := make([]domain.MonthlyPoint, 12)
		for i := range points {
			points[i] = domain.MonthlyPoint{MonthIndex: i, Income: decimal.Zero, Expense: decimal.Zero}
		}
		out.Yearly = points
		return out
	}
	out.Monthly = &domain.MonthlySummary{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		Balance:           decimal.Zero,
		CategoryBreakdown: []domain.CategoryTotal{},
	}
	return out
}
