package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"backtrail/internal/eventlog"
	"backtrail/internal/oplog"
	"backtrail/internal/oplog/interceptor"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/platform/sentinel"
	"backtrail/pkg/platform/tx"
	"backtrail/pkg/requestcontext"
)

// Declared operation metadata. Delete is destructive and therefore audited
// even at MEDIUM risk; amount changes move money and are declared HIGH.
var (
	opCreate       = interceptor.Descriptor{Module: Module, Action: "payment.create", Risk: oplog.RiskLow}
	opChangeRate   = interceptor.Descriptor{Module: Module, Action: "payment.rate_change", Risk: oplog.RiskMedium}
	opChangeAmount = interceptor.Descriptor{Module: Module, Action: "payment.amount_change", Risk: oplog.RiskHigh}
	opDelete       = interceptor.Descriptor{Module: Module, Action: "payment.delete", Risk: oplog.RiskMedium, Destructive: true}
	opRestore      = interceptor.Descriptor{Module: Module, Action: "payment.restore", Risk: oplog.RiskHigh}
)

// Service orchestrates payment mutations: each one updates the row and
// appends its event inside one transaction, then the interceptor chronicles
// the completed call in the oplog.
type Service struct {
	store  Store
	events *eventlog.Recorder
	runner tx.Runner
	ops    *interceptor.Interceptor
}

func NewService(store Store, events *eventlog.Recorder, runner tx.Runner, ops *interceptor.Interceptor) *Service {
	return &Service{store: store, events: events, runner: runner, ops: ops}
}

// Create opens a payment; its CREATE event carries the full initial snapshot
// and always gets sequence 1.
func (s *Service) Create(ctx context.Context, input CreateInput) (Payment, error) {
	if err := input.Validate(); err != nil {
		return Payment{}, err
	}

	now := requestcontext.Now(ctx)
	payment := Payment{
		ID:        uuid.NewString(),
		PaymentNo: input.PaymentNo,
		Currency:  input.Currency,
		Rate:      input.Rate,
		Amount:    input.Amount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.ops.Do(ctx, opCreate, func(ctx context.Context) (string, error) {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Create(ctx, payment); err != nil {
				return translateStoreErr(err)
			}
			snapshot, err := eventlog.Snapshot(payment)
			if err != nil {
				return err
			}
			_, err = s.events.Record(ctx, eventlog.Event{
				AggregateID: payment.ID,
				AggregateNo: payment.PaymentNo,
				Type:        eventlog.TypeCreate,
				Changes:     snapshot,
				Note:        input.Note,
			})
			return err
		})
		return "payment " + payment.PaymentNo + " created", err
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// ChangeRate records a RATE_CHANGE event with a before/after diff.
func (s *Service) ChangeRate(ctx context.Context, id, rate, note string) (Payment, error) {
	if err := validateDecimal("rate", rate); err != nil {
		return Payment{}, err
	}
	return s.mutate(ctx, opChangeRate, id, note, EventRateChange, func(p *Payment) (map[string]eventlog.FieldChange, error) {
		if p.Rate == rate {
			return nil, dErrors.New(dErrors.CodeBadRequest, "rate is unchanged")
		}
		diff := map[string]eventlog.FieldChange{
			"rate": {Before: p.Rate, After: rate},
		}
		p.Rate = rate
		return diff, nil
	})
}

// ChangeAmount records an AMOUNT_CHANGE event with a before/after diff.
func (s *Service) ChangeAmount(ctx context.Context, id, amount, note string) (Payment, error) {
	if err := validateDecimal("amount", amount); err != nil {
		return Payment{}, err
	}
	return s.mutate(ctx, opChangeAmount, id, note, EventAmountChange, func(p *Payment) (map[string]eventlog.FieldChange, error) {
		if p.Amount == amount {
			return nil, dErrors.New(dErrors.CodeBadRequest, "amount is unchanged")
		}
		diff := map[string]eventlog.FieldChange{
			"amount": {Before: p.Amount, After: amount},
		}
		p.Amount = amount
		return diff, nil
	})
}

// Delete soft-deletes the payment. The row stays; the trail records DELETE.
func (s *Service) Delete(ctx context.Context, id, note string) (Payment, error) {
	return s.mutate(ctx, opDelete, id, note, eventlog.TypeDelete, func(p *Payment) (map[string]eventlog.FieldChange, error) {
		if p.Deleted {
			return nil, dErrors.New(dErrors.CodeBadRequest, "payment already deleted")
		}
		diff := map[string]eventlog.FieldChange{
			"deleted": {Before: false, After: true},
		}
		p.Deleted = true
		return diff, nil
	})
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, id, note string) (Payment, error) {
	return s.mutate(ctx, opRestore, id, note, eventlog.TypeRestore, func(p *Payment) (map[string]eventlog.FieldChange, error) {
		if !p.Deleted {
			return nil, dErrors.New(dErrors.CodeBadRequest, "payment is not deleted")
		}
		diff := map[string]eventlog.FieldChange{
			"deleted": {Before: true, After: false},
		}
		p.Deleted = false
		return diff, nil
	})
}

// Get returns the current payment state.
func (s *Service) Get(ctx context.Context, id string) (Payment, error) {
	payment, err := s.store.Get(ctx, id)
	if err != nil {
		return Payment{}, translateStoreErr(err)
	}
	return payment, nil
}

// History returns the full ordered event trail of a payment.
func (s *Service) History(ctx context.Context, id string) ([]eventlog.Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.events.History(ctx, id)
}

// mutate loads the payment, applies the change, and persists row + event in
// one transaction; deleted payments only accept Restore.
func (s *Service) mutate(
	ctx context.Context,
	desc interceptor.Descriptor,
	id, note string,
	eventType eventlog.EventType,
	apply func(*Payment) (map[string]eventlog.FieldChange, error),
) (Payment, error) {
	if id == "" {
		return Payment{}, dErrors.New(dErrors.CodeBadRequest, "payment id required")
	}

	var payment Payment
	err := s.ops.Do(ctx, desc, func(ctx context.Context) (string, error) {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			// Locked read: a concurrent mutation of the same payment has
			// either committed (we diff against its result) or waits for
			// this transaction. A plain read could diff against a state
			// already overwritten by the other writer.
			loaded, err := s.store.GetForUpdate(ctx, id)
			if err != nil {
				return translateStoreErr(err)
			}
			if loaded.Deleted && eventType != eventlog.TypeRestore {
				return dErrors.New(dErrors.CodeBadRequest, "payment is deleted")
			}

			diff, err := apply(&loaded)
			if err != nil {
				return err
			}
			loaded.UpdatedAt = requestcontext.Now(ctx)

			if err := s.store.Update(ctx, loaded); err != nil {
				return translateStoreErr(err)
			}

			changes, err := eventlog.Diff(diff)
			if err != nil {
				return err
			}
			if _, err := s.events.Record(ctx, eventlog.Event{
				AggregateID: loaded.ID,
				AggregateNo: loaded.PaymentNo,
				Type:        eventType,
				Changes:     changes,
				Note:        note,
			}); err != nil {
				return err
			}

			payment = loaded
			return nil
		})
		return fmt.Sprintf("payment %s %s", payment.PaymentNo, string(eventType)), err
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "payment not found", err)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, "payment already exists", err)
	default:
		return err
	}
}
