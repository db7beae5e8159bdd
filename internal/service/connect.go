package service

import (
	"context"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var connectTracer = otel.Tracer("service/connect")

// ConnectService drives the link-token and connect-a-bank flows against
// the two external providers.
type ConnectService struct {
	transactions port.TransactionProvider
	aggregation  port.AggregationProvider
	poller       *AggregationPoller
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewConnectService creates the connect service with all dependencies injected.
func NewConnectService(
	transactions port.TransactionProvider,
	aggregation port.AggregationProvider,
	poller *AggregationPoller,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ConnectService {
	return &ConnectService{
		transactions: transactions,
		aggregation:  aggregation,
		poller:       poller,
		metrics:      metrics,
		logger:       logger,
	}
}

// CreateLinkToken issues a provider link token. A client user id is
// generated when the caller does not supply one.
func (s *ConnectService) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.CreateLinkToken")
	defer span.End()

	if clientUserID == "" {
		clientUserID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("client_user.id", clientUserID))

	return s.transactions.CreateLinkToken(ctx, clientUserID)
}

// ExchangePublicToken swaps a widget-issued public token for an access token.
func (s *ConnectService) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.ExchangePublicToken")
	defer span.End()

	if publicToken == "" {
		return "", &domain.ErrValidation{Field: "public_token", Message: "required"}
	}
	return s.transactions.ExchangePublicToken(ctx, publicToken)
}

// Connect starts (or resumes) the connect-a-bank flow. It creates the
// provider-side user when missing and issues a connect-widget URL. When a
// member GUID is supplied it also submits an aggregation request and
// schedules the background status poller, returning immediately; the
// caller never waits for a terminal poll outcome.
func (s *ConnectService) Connect(ctx context.Context, req *domain.ConnectRequest) (*domain.ConnectResponse, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.Connect")
	defer span.End()

	userGUID := req.UserGUID
	if userGUID == "" {
		created, err := s.aggregation.CreateUser(ctx, "")
		if err != nil {
			s.metrics.IncrExternalError("mx")
			return nil, err
		}
		userGUID = created
	}
	span.SetAttributes(attribute.String("user.guid", userGUID))

	widgetURL, err := s.aggregation.ConnectWidgetURL(ctx, userGUID, req.MemberGUID)
	if err != nil {
		s.metrics.IncrExternalError("mx")
		return nil, err
	}

	resp := &domain.ConnectResponse{
		UserGUID:   userGUID,
		MemberGUID: req.MemberGUID,
		WidgetURL:  widgetURL,
	}

	if req.MemberGUID != "" {
		if err := s.aggregation.StartAggregation(ctx, userGUID, req.MemberGUID); err != nil {
			s.metrics.IncrExternalError("mx")
			return nil, err
		}

		// Fire-and-forget: the poller outlives this request, so it runs
		// on a fresh background context, not the request's.
		job := domain.AggregationJob{UserGUID: userGUID, MemberGUID: req.MemberGUID}
		go s.poller.Watch(context.Background(), job)

		resp.AggregationScheduled = true
		s.logger.Info("aggregation poller scheduled",
			zap.String("user_guid", userGUID),
			zap.String("member_guid", req.MemberGUID),
		)
	}

	return resp, nil
}

// MemberStatus performs a one-shot status read for callers that want to
// inspect a connection without waiting on the background poller.
func (s *ConnectService) MemberStatus(ctx context.Context, userGUID, memberGUID string) (*domain.MemberStatusResponse, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.MemberStatus")
	defer span.End()

	status, err := s.aggregation.MemberStatus(ctx, userGUID, memberGUID)
	if err != nil {
		s.metrics.IncrExternalError("mx")
		return nil, err
	}
	return &domain.MemberStatusResponse{
		UserGUID:   userGUID,
		MemberGUID: memberGUID,
		Status:     status,
		CheckedAt:  time.Now(),
	}, nil
}

// SearchInstitutions proxies the provider institution search.
func (s *ConnectService) SearchInstitutions(ctx context.Context, query string) ([]domain.Institution, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.SearchInstitutions")
	defer span.End()

	if query == "" {
		return nil, &domain.ErrValidation{Field: "q", Message: "required"}
	}
	return s.aggregation.SearchInstitutions(ctx, query)
}

// ListUsers lists provider-side users.
func (s *ConnectService) ListUsers(ctx context.Context) ([]domain.AggregationUser, error) {
	ctx, span := connectTracer.Start(ctx, "ConnectService.ListUsers")
	defer span.End()

	return s.aggregation.ListUsers(ctx)
}

// DeleteUser removes a provider-side user.
func (s *ConnectService) DeleteUser(ctx context.Context, userGUID string) error {
	ctx, span := connectTracer.Start(ctx, "ConnectService.DeleteUser")
	defer span.End()

	if userGUID == "" {
		return &domain.ErrValidation{Field: "userGuid", Message: "required"}
	}
	return s.aggregation.DeleteUser(ctx, userGUID)
}
