package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san2804/finguard-go/internal/domain"
	"github.com/san2804/finguard-go/internal/infra/observability"
	"github.com/san2804/finguard-go/internal/port"
	"github.com/san2804/finguard-go/internal/summary"
)

var summaryTracer = otel.Tracer("service/summary")

// SummaryService answers one-shot summary queries by pulling the records
// once and running the aggregation engine over them. Results are cached
// briefly per user and scope; live views use LiveController instead.
type SummaryService struct {
	repo    port.TransactionRepository
	cache   port.Cache[any]
	loc     *time.Location
	clock   func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSummaryService creates the read-side summary service.
func NewSummaryService(repo port.TransactionRepository, cache port.Cache[any], loc *time.Location, metrics *observability.Metrics, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		repo:    repo,
		cache:   cache,
		loc:     loc,
		clock:   time.Now,
		metrics: metrics,
		logger:  logger,
	}
}

// WithClock overrides the time source for tests.
func (s *SummaryService) WithClock(clock func() time.Time) *SummaryService {
	s.clock = clock
	return s
}

// MonthSummary computes the summary for one calendar month in the canonical
// timezone.
func (s *SummaryService) MonthSummary(ctx context.Context, userID string, year int, month time.Month) (*domain.MonthlySummary, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.MonthSummary")
	defer span.End()
	span.SetAttributes(attribute.Int("summary.year", year), attribute.Int("summary.month", int(month)))

	cacheKey := fmt.Sprintf("month:%s:%04d-%02d", userID, year, month)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if m, ok := cached.(*domain.MonthlySummary); ok {
			s.metrics.IncrCacheHit("summary")
			return m, nil
		}
	}
	s.metrics.IncrCacheMiss("summary")

	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)

	records, err := s.repo.Query(ctx, userID, &domain.DateRange{Start: start, End: end})
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "query month", Err: err}
	}

	m := summary.SummarizeMonth(records, start, end)
	s.cache.Set(cacheKey, &m)
	return &m, nil
}

// YearSeries computes the 12-bucket series for one calendar year.
func (s *SummaryService) YearSeries(ctx context.Context, userID string, year int) ([]domain.MonthlyPoint, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.YearSeries")
	defer span.End()
	span.SetAttributes(attribute.Int("summary.year", year))

	cacheKey := fmt.Sprintf("year:%s:%04d", userID, year)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if pts, ok := cached.([]domain.MonthlyPoint); ok {
			s.metrics.IncrCacheHit("summary")
			return pts, nil
		}
	}
	s.metrics.IncrCacheMiss("summary")

	rng := domain.YearScope(year).Range(s.clock(), s.loc)
	records, err := s.repo.Query(ctx, userID, &rng)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "query year", Err: err}
	}

	pts := summary.SummarizeYear(records, year, s.loc)
	s.cache.Set(cacheKey, pts)
	return pts, nil
}

// Overview fetches the current month's summary and the current year's
// series concurrently. This backs the home screen, which shows both.
func (s *SummaryService) Overview(ctx context.Context, userID string) (*domain.Overview, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.Overview")
	defer span.End()

	now := s.clock().In(s.loc)

	var (
		month *domain.MonthlySummary
		year  []domain.MonthlyPoint
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.MonthSummary(gCtx, userID, now.Year(), now.Month())
		if err != nil {
			s.logger.Error("overview: month summary failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return err
		}
		month = m
		return nil
	})

	g.Go(func() error {
		pts, err := s.YearSeries(gCtx, userID, now.Year())
		if err != nil {
			s.logger.Error("overview: year series failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return err
		}
		year = pts
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Overview{Month: month, Year: year}, nil
}

// ListTransactions returns the user's records for one month, newest first,
// optionally filtered by kind.
func (s *SummaryService) ListTransactions(ctx context.Context, userID string, kind domain.Kind, year int, month time.Month) ([]domain.TransactionRecord, error) {
	ctx, span := summaryTracer.Start(ctx, "SummaryService.ListTransactions")
	defer span.End()

	start := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 1, 0)

	records, err := s.repo.Query(ctx, userID, &domain.DateRange{Start: start, End: end})
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "query transactions", Err: err}
	}
	if kind == "" {
		return records, nil
	}

	filtered := make([]domain.TransactionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Kind == kind {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}
