package domain

import (
	"strings"
	"time"
)

// ============================================================
// Aggregation ("connect a bank") workflow
// ============================================================

// AggregationStatus is the connection status reported by the aggregation
// provider for an in-flight member.
type AggregationStatus string

const (
	StatusPending   AggregationStatus = "pending"
	StatusConnected AggregationStatus = "connected"
	StatusFailed    AggregationStatus = "failed"
	StatusDenied    AggregationStatus = "denied"
	StatusPrevented AggregationStatus = "prevented"
	StatusRejected  AggregationStatus = "rejected"
	StatusExpired   AggregationStatus = "expired"
)

// ParseAggregationStatus normalizes a provider status label. Labels outside
// the known terminal set are treated as still pending.
func ParseAggregationStatus(label string) AggregationStatus {
	s := AggregationStatus(strings.ToLower(label))
	switch s {
	case StatusConnected, StatusFailed, StatusDenied, StatusPrevented, StatusRejected, StatusExpired:
		return s
	}
	return StatusPending
}

// Failure reports whether the status is a failure-terminal value.
// All failure statuses are treated identically: log and stop polling.
func (s AggregationStatus) Failure() bool {
	switch s {
	case StatusFailed, StatusDenied, StatusPrevented, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further polling should occur for this status.
func (s AggregationStatus) Terminal() bool {
	return s == StatusConnected || s.Failure()
}

// AggregationJob describes one in-flight bank-connection attempt watched by
// the status poller. It lives only for the duration of the attempt and is
// never persisted.
type AggregationJob struct {
	UserGUID   string
	MemberGUID string
}

// AggregationUser is a provider-side user record.
type AggregationUser struct {
	GUID     string `json:"guid"`
	Metadata string `json:"metadata,omitempty"`
}

// ConnectRequest starts (or resumes) the connect-a-bank flow. When
// MemberGUID is set an aggregation is submitted and the status poller is
// scheduled; otherwise only a widget URL is issued.
type ConnectRequest struct {
	UserGUID   string `json:"user_guid,omitempty"`
	MemberGUID string `json:"member_guid,omitempty"`
}

// ConnectResponse is returned immediately after scheduling; it never waits
// for the background poller.
type ConnectResponse struct {
	UserGUID             string `json:"user_guid"`
	MemberGUID           string `json:"member_guid,omitempty"`
	WidgetURL            string `json:"widget_url,omitempty"`
	AggregationScheduled bool   `json:"aggregation_scheduled"`
}

// MemberStatusResponse is the one-shot status read exposed next to the
// background poller.
type MemberStatusResponse struct {
	UserGUID   string            `json:"user_guid"`
	MemberGUID string            `json:"member_guid"`
	Status     AggregationStatus `json:"status"`
	CheckedAt  time.Time         `json:"checked_at"`
}
