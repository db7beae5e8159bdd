// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete provider implementations.
package port

import (
	"context"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
)

// TransactionProvider is the Plaid-compatible transaction aggregation
// provider: link-token issuance, token exchange and time-windowed
// transaction/account fetches.
type TransactionProvider interface {
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, error)
	TransactionsInWindow(ctx context.Context, accessToken string, start, end time.Time) ([]domain.Transaction, []domain.Account, error)
}

// AggregationProvider is the MX-compatible account aggregation provider:
// user/member lifecycle, connect-widget URLs and member status reads.
type AggregationProvider interface {
	CreateUser(ctx context.Context, metadata string) (string, error)
	ListUsers(ctx context.Context) ([]domain.AggregationUser, error)
	DeleteUser(ctx context.Context, userGUID string) error
	ConnectWidgetURL(ctx context.Context, userGUID, currentMemberGUID string) (string, error)
	StartAggregation(ctx context.Context, userGUID, memberGUID string) error
	MemberStatus(ctx context.Context, userGUID, memberGUID string) (domain.AggregationStatus, error)
	SearchInstitutions(ctx context.Context, query string) ([]domain.Institution, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
