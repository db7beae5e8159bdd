package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/insights")

const (
	analyticsWindowDays = 30
	overviewWindowDays  = 90
)

// InsightsService computes transaction analytics over provider-fetched
// transaction windows.
type InsightsService struct {
	provider port.TransactionProvider
	cache    port.Cache[any]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewInsightsService creates the insights service with all dependencies injected.
func NewInsightsService(
	provider port.TransactionProvider,
	cache port.Cache[any],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *InsightsService {
	return &InsightsService{
		provider: provider,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// window returns the [now-days, now] fetch window.
func window(days int) (start, end time.Time) {
	end = time.Now()
	return end.AddDate(0, 0, -days), end
}

// GetAnalytics fetches the 30-day transaction window and derives the
// short-form analytics.
func (s *InsightsService) GetAnalytics(ctx context.Context, accessToken string) (*domain.AnalyticsResult, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetAnalytics")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("analytics", time.Since(start))
	}()

	cacheKey := fmt.Sprintf("analytics:%s", accessToken)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if result, ok := cached.(*domain.AnalyticsResult); ok {
			s.metrics.IncrCacheHit("analytics")
			return result, nil
		}
	}
	s.metrics.IncrCacheMiss("analytics")

	from, to := window(analyticsWindowDays)
	txns, accounts, err := s.provider.TransactionsInWindow(ctx, accessToken, from, to)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return nil, fmt.Errorf("transactions fetch: %w", err)
	}

	result := BuildAnalytics(txns, accounts)
	s.cache.Set(cacheKey, result)
	return result, nil
}

// GetOverview fetches the 90-day transaction window and derives the
// long-form financial overview.
func (s *InsightsService) GetOverview(ctx context.Context, accessToken string) (*domain.FinancialOverview, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetOverview")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("overview", time.Since(start))
	}()

	cacheKey := fmt.Sprintf("overview:%s", accessToken)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if overview, ok := cached.(*domain.FinancialOverview); ok {
			s.metrics.IncrCacheHit("analytics")
			return overview, nil
		}
	}
	s.metrics.IncrCacheMiss("analytics")

	from, to := window(overviewWindowDays)
	txns, accounts, err := s.provider.TransactionsInWindow(ctx, accessToken, from, to)
	if err != nil {
		s.metrics.IncrExternalError("plaid")
		return nil, fmt.Errorf("transactions fetch: %w", err)
	}

	overview := BuildFinancialOverview(txns, accounts)
	s.cache.Set(cacheKey, overview)
	return overview, nil
}

// GetDashboard fetches both windows concurrently and returns the combined
// dashboard payload.
func (s *InsightsService) GetDashboard(ctx context.Context, accessToken string) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetDashboard")
	defer span.End()

	var (
		analytics *domain.AnalyticsResult
		overview  *domain.FinancialOverview
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analytics, err = s.GetAnalytics(gCtx, accessToken)
		return err
	})
	g.Go(func() error {
		var err error
		overview, err = s.GetOverview(gCtx, accessToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Dashboard{Analytics: analytics, Overview: overview}, nil
}
