package service

import (
	"context"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/infra/resilience"
	"github.com/dmarques/finsight-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var pollTracer = otel.Tracer("service/poller")

// PollOutcome is the terminal result of one aggregation poll loop.
type PollOutcome string

const (
	// OutcomeConnected: the member reached the success-terminal status.
	OutcomeConnected PollOutcome = "connected"
	// OutcomeFailed: the member reached a failure-terminal status.
	OutcomeFailed PollOutcome = "failed"
	// OutcomeTimedOut: the attempt ceiling was reached while still pending.
	OutcomeTimedOut PollOutcome = "timed_out"
	// OutcomeInconclusive: a status fetch failed, so the underlying job
	// state is unknown. Treated like a timeout; the fetch is never retried.
	OutcomeInconclusive PollOutcome = "inconclusive"
)

// AggregationPoller watches one in-flight bank connection at a time per
// job, polling the provider's member status on a fixed interval until a
// terminal status or the attempt ceiling. Each Watch call owns only its
// job descriptor; pollers share nothing, so no locking is needed. A
// bulkhead caps how many loops run at once.
type AggregationPoller struct {
	provider    port.AggregationProvider
	bulkhead    *resilience.Bulkhead
	interval    time.Duration
	maxAttempts int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewAggregationPoller creates a poller with the given cadence and ceiling.
func NewAggregationPoller(
	provider port.AggregationProvider,
	bulkhead *resilience.Bulkhead,
	interval time.Duration,
	maxAttempts int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AggregationPoller {
	return &AggregationPoller{
		provider:    provider,
		bulkhead:    bulkhead,
		interval:    interval,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger,
	}
}

// Watch runs the poll loop to a terminal outcome. It is designed to run as
// a detached goroutine: the request that scheduled it has already returned,
// so outcomes are reported through logs and metrics only.
func (p *AggregationPoller) Watch(ctx context.Context, job domain.AggregationJob) PollOutcome {
	ctx, span := pollTracer.Start(ctx, "AggregationPoller.Watch")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.guid", job.UserGUID),
		attribute.String("member.guid", job.MemberGUID),
	)

	if err := p.bulkhead.Acquire(ctx); err != nil {
		p.logger.Warn("aggregation poll not started",
			zap.String("member_guid", job.MemberGUID),
			zap.Error(err),
		)
		return p.finish(job, OutcomeInconclusive, 0)
	}
	defer p.bulkhead.Release()

	for attempt := 1; ; attempt++ {
		status, err := p.provider.MemberStatus(ctx, job.UserGUID, job.MemberGUID)
		if err != nil {
			// A single failed fetch ends the loop: the job state is
			// unknown and the original caller already got its response.
			p.logger.Error("aggregation status fetch failed",
				zap.String("member_guid", job.MemberGUID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return p.finish(job, OutcomeInconclusive, attempt)
		}

		switch {
		case status == domain.StatusConnected:
			return p.finish(job, OutcomeConnected, attempt)
		case status.Failure():
			p.logger.Warn("aggregation failed",
				zap.String("member_guid", job.MemberGUID),
				zap.String("status", string(status)),
			)
			return p.finish(job, OutcomeFailed, attempt)
		}

		if attempt >= p.maxAttempts {
			return p.finish(job, OutcomeTimedOut, attempt)
		}

		select {
		case <-ctx.Done():
			return p.finish(job, OutcomeInconclusive, attempt)
		case <-time.After(p.interval):
		}
	}
}

func (p *AggregationPoller) finish(job domain.AggregationJob, outcome PollOutcome, attempts int) PollOutcome {
	p.metrics.IncrPoll(string(outcome))
	p.logger.Info("aggregation poll finished",
		zap.String("user_guid", job.UserGUID),
		zap.String("member_guid", job.MemberGUID),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", attempts),
	)
	return outcome
}
