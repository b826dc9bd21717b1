package payments

import "context"

// Store persists payment state. Event history is the eventlog's job; this
// store only holds the current row.
type Store interface {
	Create(ctx context.Context, payment Payment) error
	Get(ctx context.Context, id string) (Payment, error)
	// GetForUpdate locks the row for the rest of the context transaction,
	// so a mutation's before/after diff is computed from the committed
	// predecessor state rather than a stale concurrent read.
	GetForUpdate(ctx context.Context, id string) (Payment, error)
	Update(ctx context.Context, payment Payment) error
}
