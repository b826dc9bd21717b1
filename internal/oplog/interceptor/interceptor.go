// Package interceptor wraps mutating operations with declared
// (module, action, risk) metadata and chronicles successful completions in
// the oplog. It is a pure side-effect wrapper: the wrapped operation's
// result, error, and transactional semantics pass through untouched.
package interceptor

import (
	"context"
	"time"

	"backtrail/internal/oplog"
	"backtrail/pkg/requestcontext"
)

// Descriptor is the declared metadata of one operation.
type Descriptor struct {
	Module string
	Action string
	Risk   oplog.RiskLevel
	// Destructive marks delete/credential-style actions. Destructive
	// operations are audited regardless of declared risk level.
	Destructive bool
}

// Recorder is the slice of the oplog publisher the interceptor needs.
type Recorder interface {
	Record(ctx context.Context, entry oplog.Entry)
}

// Interceptor emits business and audit entries after successful invocations.
type Interceptor struct {
	log Recorder
}

// New creates an Interceptor dispatching to the given recorder.
func New(log Recorder) *Interceptor {
	return &Interceptor{log: log}
}

// Do invokes op and, on success, records a business-activity entry — plus an
// audit entry when the descriptor is destructive or its risk is HIGH or
// CRITICAL. A failed op produces no entries of either kind: failure
// reporting is error-tracking's job, not the activity log's.
//
// The detail string returned by op lands in the entries verbatim.
func (i *Interceptor) Do(ctx context.Context, d Descriptor, op func(ctx context.Context) (string, error)) error {
	start := requestcontext.Now(ctx)

	detail, err := op(ctx)
	if err != nil {
		return err
	}

	entry := oplog.Entry{
		Kind:       oplog.KindBusiness,
		Module:     d.Module,
		Action:     d.Action,
		Risk:       d.Risk,
		Outcome:    oplog.OutcomeSuccess,
		Detail:     detail,
		DurationMS: time.Since(start).Milliseconds(),
	}
	i.log.Record(ctx, entry)

	if d.Destructive || d.Risk.RequiresAudit() {
		audit := entry
		audit.Kind = oplog.KindAudit
		i.log.Record(ctx, audit)
	}
	return nil
}
