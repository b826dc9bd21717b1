// Package oplog is the cross-cutting business/audit logging pipeline. It
// records two categories of entries: business activity (every successful
// mutating call) and audit (destructive or high-risk operations). Dispatch is
// asynchronous and best-effort: a logging failure is counted and logged but
// never reaches the business caller. Structural aggregate history lives in
// the eventlog package and is transactional; the two are deliberately not
// blended.
package oplog

import (
	"context"
	"time"
)

// Kind separates business-activity entries from audit entries.
type Kind string

const (
	KindBusiness Kind = "business"
	KindAudit    Kind = "audit"
)

// RiskLevel is the declared severity of an operation. HIGH and CRITICAL
// operations are audited in addition to the business entry.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RequiresAudit reports whether the level alone mandates an audit entry.
func (r RiskLevel) RequiresAudit() bool {
	return r == RiskHigh || r == RiskCritical
}

// Outcome of the chronicled invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one business or audit log line. Every line produced while handling
// one inbound request carries the same TraceID, which is the only link
// between log lines and event records (no foreign keys).
type Entry struct {
	TraceID    string    `json:"trace_id"`
	Kind       Kind      `json:"kind"`
	Module     string    `json:"module"`
	Action     string    `json:"action"`
	Risk       RiskLevel `json:"risk"`
	Actor      string    `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	ClientIP   string    `json:"client_ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// Sink receives completed entries for durable storage, search, or archival.
// The pipeline guarantees a delivery attempt, not downstream durability.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}
