package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/infra/observability"
	"github.com/dmarques/finsight-api/internal/infra/resilience"
	"github.com/dmarques/finsight-api/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type fakeTransactions struct {
	linkToken       string
	accessToken     string
	err             error
	gotClientUserID string
	gotPublicToken  string
}

func (f *fakeTransactions) CreateLinkToken(_ context.Context, clientUserID string) (string, error) {
	f.gotClientUserID = clientUserID
	return f.linkToken, f.err
}

func (f *fakeTransactions) ExchangePublicToken(_ context.Context, publicToken string) (string, error) {
	f.gotPublicToken = publicToken
	return f.accessToken, f.err
}

func (f *fakeTransactions) TransactionsInWindow(context.Context, string, time.Time, time.Time) ([]domain.Transaction, []domain.Account, error) {
	panic("not used")
}

type fakeAggregation struct {
	mu sync.Mutex

	createdGUID  string
	createErr    error
	widgetURL    string
	widgetErr    error
	aggregateErr error
	status       domain.AggregationStatus
	users        []domain.AggregationUser
	institutions []domain.Institution

	createCalls    int
	aggregateCalls int
	statusCalls    int
	deletedGUID    string
}

func (f *fakeAggregation) CreateUser(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createdGUID, f.createErr
}

func (f *fakeAggregation) ListUsers(context.Context) ([]domain.AggregationUser, error) {
	return f.users, nil
}

func (f *fakeAggregation) DeleteUser(_ context.Context, userGUID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedGUID = userGUID
	return nil
}

func (f *fakeAggregation) ConnectWidgetURL(_ context.Context, _, _ string) (string, error) {
	return f.widgetURL, f.widgetErr
}

func (f *fakeAggregation) StartAggregation(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggregateCalls++
	return f.aggregateErr
}

func (f *fakeAggregation) MemberStatus(context.Context, string, string) (domain.AggregationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	return f.status, nil
}

func (f *fakeAggregation) SearchInstitutions(context.Context, string) ([]domain.Institution, error) {
	return f.institutions, nil
}

func newConnectService(txn *fakeTransactions, agg *fakeAggregation) *service.ConnectService {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	poller := service.NewAggregationPoller(
		agg,
		resilience.NewBulkhead(4),
		time.Millisecond,
		3,
		metrics,
		logger,
	)
	return service.NewConnectService(txn, agg, poller, metrics, logger)
}

// --- Tests ---

func TestCreateLinkToken_GeneratesClientUserID(t *testing.T) {
	txn := &fakeTransactions{linkToken: "link-sandbox-abc"}
	svc := newConnectService(txn, &fakeAggregation{})

	token, err := svc.CreateLinkToken(context.Background(), "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token != "link-sandbox-abc" {
		t.Errorf("expected link token 'link-sandbox-abc', got '%s'", token)
	}
	if txn.gotClientUserID == "" {
		t.Error("expected a generated client user id, got empty string")
	}
}

func TestCreateLinkToken_KeepsSuppliedClientUserID(t *testing.T) {
	txn := &fakeTransactions{linkToken: "link-sandbox-abc"}
	svc := newConnectService(txn, &fakeAggregation{})

	if _, err := svc.CreateLinkToken(context.Background(), "user-42"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if txn.gotClientUserID != "user-42" {
		t.Errorf("expected client user id 'user-42', got '%s'", txn.gotClientUserID)
	}
}

func TestExchangePublicToken_EmptyIsValidationError(t *testing.T) {
	svc := newConnectService(&fakeTransactions{}, &fakeAggregation{})

	_, err := svc.ExchangePublicToken(context.Background(), "")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConnect_CreatesUserWhenMissing(t *testing.T) {
	agg := &fakeAggregation{createdGUID: "USR-new", widgetURL: "https://widget.example/abc"}
	svc := newConnectService(&fakeTransactions{}, agg)

	resp, err := svc.Connect(context.Background(), &domain.ConnectRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agg.createCalls != 1 {
		t.Errorf("expected 1 user creation, got %d", agg.createCalls)
	}
	if resp.UserGUID != "USR-new" {
		t.Errorf("expected user guid 'USR-new', got '%s'", resp.UserGUID)
	}
	if resp.WidgetURL != "https://widget.example/abc" {
		t.Errorf("expected widget url, got '%s'", resp.WidgetURL)
	}
	if resp.AggregationScheduled {
		t.Error("no member guid supplied, aggregation must not be scheduled")
	}
}

func TestConnect_ReusesSuppliedUser(t *testing.T) {
	agg := &fakeAggregation{widgetURL: "https://widget.example/abc"}
	svc := newConnectService(&fakeTransactions{}, agg)

	resp, err := svc.Connect(context.Background(), &domain.ConnectRequest{UserGUID: "USR-keep"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agg.createCalls != 0 {
		t.Errorf("expected no user creation, got %d", agg.createCalls)
	}
	if resp.UserGUID != "USR-keep" {
		t.Errorf("expected user guid 'USR-keep', got '%s'", resp.UserGUID)
	}
}

func TestConnect_SchedulesAggregationForMember(t *testing.T) {
	agg := &fakeAggregation{
		widgetURL: "https://widget.example/abc",
		status:    domain.StatusConnected, // lets the background poller finish fast
	}
	svc := newConnectService(&fakeTransactions{}, agg)

	resp, err := svc.Connect(context.Background(), &domain.ConnectRequest{
		UserGUID:   "USR-1",
		MemberGUID: "MBR-1",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	agg.mu.Lock()
	aggregateCalls := agg.aggregateCalls
	agg.mu.Unlock()
	if aggregateCalls != 1 {
		t.Errorf("expected 1 aggregation submission, got %d", aggregateCalls)
	}
	if !resp.AggregationScheduled {
		t.Error("expected aggregation to be scheduled")
	}

	// The poller runs detached; give it a moment to take its first status read.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		agg.mu.Lock()
		calls := agg.statusCalls
		agg.mu.Unlock()
		if calls > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("background poller never fetched a member status")
}

func TestConnect_AggregationErrorPropagates(t *testing.T) {
	agg := &fakeAggregation{
		widgetURL:    "https://widget.example/abc",
		aggregateErr: &domain.ErrExternalService{Service: "mx", Err: errors.New("boom")},
	}
	svc := newConnectService(&fakeTransactions{}, agg)

	_, err := svc.Connect(context.Background(), &domain.ConnectRequest{
		UserGUID:   "USR-1",
		MemberGUID: "MBR-1",
	})
	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestMemberStatus_OneShot(t *testing.T) {
	agg := &fakeAggregation{status: domain.StatusDenied}
	svc := newConnectService(&fakeTransactions{}, agg)

	resp, err := svc.MemberStatus(context.Background(), "USR-1", "MBR-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Status != domain.StatusDenied {
		t.Errorf("expected status denied, got %s", resp.Status)
	}
	if resp.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be set")
	}
}

func TestSearchInstitutions_EmptyQuery(t *testing.T) {
	svc := newConnectService(&fakeTransactions{}, &fakeAggregation{})

	_, err := svc.SearchInstitutions(context.Background(), "")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	agg := &fakeAggregation{}
	svc := newConnectService(&fakeTransactions{}, agg)

	if err := svc.DeleteUser(context.Background(), "USR-gone"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agg.deletedGUID != "USR-gone" {
		t.Errorf("expected USR-gone to be deleted, got '%s'", agg.deletedGUID)
	}

	var validation *domain.ErrValidation
	if err := svc.DeleteUser(context.Background(), ""); !errors.As(err, &validation) {
		t.Fatalf("expected validation error for empty guid, got %v", err)
	}
}
