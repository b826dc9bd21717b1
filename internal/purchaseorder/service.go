package purchaseorder

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

// Approval commits spend, so it is declared HIGH and always audited.
var (
	opCreate  = interceptor.Descriptor{Module: Module, Action: "purchase_order.create", Risk: oplog.RiskLow}
	opApprove = interceptor.Descriptor{Module: Module, Action: "purchase_order.approve", Risk: oplog.RiskHigh}
	opDelete  = interceptor.Descriptor{Module: Module, Action: "purchase_order.delete", Risk: oplog.RiskMedium, Destructive: true}
)

// Service mirrors the payments service shape: row mutation and event append
// share one transaction, the interceptor chronicles completed calls.
type Service struct {
	store  Store
	events *eventlog.Recorder
	runner tx.Runner
	ops    *interceptor.Interceptor
}

func NewService(store Store, events *eventlog.Recorder, runner tx.Runner, ops *interceptor.Interceptor) *Service {
	return &Service{store: store, events: events, runner: runner, ops: ops}
}

func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if err := input.Validate(); err != nil {
		return PurchaseOrder{}, err
	}

	now := requestcontext.Now(ctx)
	order := PurchaseOrder{
		ID:        uuid.NewString(),
		OrderNo:   input.OrderNo,
		Supplier:  input.Supplier,
		Total:     input.Total,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.ops.Do(ctx, opCreate, func(ctx context.Context) (string, error) {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.Create(ctx, order); err != nil {
				return translateStoreErr(err)
			}
			snapshot, err := eventlog.Snapshot(order)
			if err != nil {
				return err
			}
			_, err = s.events.Record(ctx, eventlog.Event{
				AggregateID: order.ID,
				AggregateNo: order.OrderNo,
				Type:        eventlog.TypeCreate,
				Changes:     snapshot,
				Note:        input.Note,
			})
			return err
		})
		return "purchase order " + order.OrderNo + " created", err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// Approve moves a draft order to approved.
func (s *Service) Approve(ctx context.Context, id, note string) (PurchaseOrder, error) {
	return s.mutate(ctx, opApprove, id, note, EventApprove, func(o *PurchaseOrder) (map[string]eventlog.FieldChange, error) {
		if o.Status != StatusDraft {
			return nil, dErrors.New(dErrors.CodeBadRequest, "only draft orders can be approved")
		}
		diff := map[string]eventlog.FieldChange{
			"status": {Before: string(o.Status), After: string(StatusApproved)},
		}
		o.Status = StatusApproved
		return diff, nil
	})
}

// Delete soft-deletes the order.
func (s *Service) Delete(ctx context.Context, id, note string) (PurchaseOrder, error) {
	return s.mutate(ctx, opDelete, id, note, eventlog.TypeDelete, func(o *PurchaseOrder) (map[string]eventlog.FieldChange, error) {
		if o.Deleted {
			return nil, dErrors.New(dErrors.CodeBadRequest, "purchase order already deleted")
		}
		diff := map[string]eventlog.FieldChange{
			"deleted": {Before: false, After: true},
		}
		o.Deleted = true
		return diff, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (PurchaseOrder, error) {
	order, err := s.store.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, translateStoreErr(err)
	}
	return order, nil
}

func (s *Service) History(ctx context.Context, id string) ([]eventlog.Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.events.History(ctx, id)
}

func (s *Service) mutate(
	ctx context.Context,
	desc interceptor.Descriptor,
	id, note string,
	eventType eventlog.EventType,
	apply func(*PurchaseOrder) (map[string]eventlog.FieldChange, error),
) (PurchaseOrder, error) {
	if id == "" {
		return PurchaseOrder{}, dErrors.New(dErrors.CodeBadRequest, "purchase order id required")
	}

	var order PurchaseOrder
	err := s.ops.Do(ctx, desc, func(ctx context.Context) (string, error) {
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			// Locked read: diffs and status checks start from the committed
			// predecessor state, not a stale concurrent read.
			loaded, err := s.store.GetForUpdate(ctx, id)
			if err != nil {
				return translateStoreErr(err)
			}
			if loaded.Deleted {
				return dErrors.New(dErrors.CodeBadRequest, "purchase order is deleted")
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
				AggregateNo: loaded.OrderNo,
				Type:        eventType,
				Changes:     changes,
				Note:        note,
			}); err != nil {
				return err
			}

			order = loaded
			return nil
		})
		return fmt.Sprintf("purchase order %s %s", order.OrderNo, string(eventType)), err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "purchase order not found", err)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, "purchase order already exists", err)
	default:
		return err
	}
}
