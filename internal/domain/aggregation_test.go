package domain_test

import (
	"testing"

	"github.com/dmarques/finsight-api/internal/domain"
)

func TestParseAggregationStatus(t *testing.T) {
	cases := []struct {
		label string
		want  domain.AggregationStatus
	}{
		{"CONNECTED", domain.StatusConnected},
		{"connected", domain.StatusConnected},
		{"Failed", domain.StatusFailed},
		{"DENIED", domain.StatusDenied},
		{"prevented", domain.StatusPrevented},
		{"REJECTED", domain.StatusRejected},
		{"expired", domain.StatusExpired},
		{"PENDING", domain.StatusPending},
		{"CHALLENGED", domain.StatusPending}, // unknown labels stay pending
		{"", domain.StatusPending},
	}

	for _, c := range cases {
		if got := domain.ParseAggregationStatus(c.label); got != c.want {
			t.Errorf("ParseAggregationStatus(%q) = %s, want %s", c.label, got, c.want)
		}
	}
}

func TestAggregationStatus_Failure(t *testing.T) {
	failures := []domain.AggregationStatus{
		domain.StatusFailed,
		domain.StatusDenied,
		domain.StatusPrevented,
		domain.StatusRejected,
		domain.StatusExpired,
	}
	for _, s := range failures {
		if !s.Failure() {
			t.Errorf("expected %s to be a failure status", s)
		}
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	if domain.StatusConnected.Failure() {
		t.Error("connected must not be a failure status")
	}
	if !domain.StatusConnected.Terminal() {
		t.Error("connected must be terminal")
	}
	if domain.StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
}
