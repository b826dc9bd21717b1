package purchaseorder_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtrail/internal/eventlog"
	eventmemory "backtrail/internal/eventlog/store/memory"
	"backtrail/internal/oplog"
	"backtrail/internal/oplog/interceptor"
	"backtrail/internal/purchaseorder"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/platform/tx"
	"backtrail/pkg/testutil"
)

type oplogSpy struct {
	mu      sync.Mutex
	entries []oplog.Entry
}

func (s *oplogSpy) Record(_ context.Context, entry oplog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *oplogSpy) byKind(kind oplog.Kind) []oplog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []oplog.Entry
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newService(t *testing.T) (*purchaseorder.Service, *oplogSpy) {
	t.Helper()
	spy := &oplogSpy{}
	service := purchaseorder.NewService(
		purchaseorder.NewInMemoryStore(),
		eventlog.NewRecorder("purchase_order", eventmemory.NewStore()),
		tx.NewMemoryRunner(),
		interceptor.New(spy),
	)
	return service, spy
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return testutil.RequestContext(t, "trace-1", "buyer-7", time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
}

func validInput() purchaseorder.CreateInput {
	return purchaseorder.CreateInput{
		OrderNo:  "PO-2026-001",
		Supplier: "Acme Industrial",
		Total:    "18400.00",
		Note:     "Q2 restock",
	}
}

func TestService_Create(t *testing.T) {
	service, spy := newService(t)
	ctx := testContext(t)

	order, err := service.Create(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, purchaseorder.StatusDraft, order.Status)

	events, err := service.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, eventlog.TypeCreate, events[0].Type)
	assert.Equal(t, "buyer-7", events[0].Operator)

	require.Len(t, spy.byKind(oplog.KindBusiness), 1)
	assert.Empty(t, spy.byKind(oplog.KindAudit))
}

func TestService_Create_InvalidInput(t *testing.T) {
	service, spy := newService(t)

	_, err := service.Create(testContext(t), purchaseorder.CreateInput{Supplier: "Acme", Total: "10"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	assert.Empty(t, spy.entries)
}

func TestService_Approve(t *testing.T) {
	service, spy := newService(t)
	ctx := testContext(t)

	order, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	approved, err := service.Approve(ctx, order.ID, "budget cleared")
	require.NoError(t, err)
	assert.Equal(t, purchaseorder.StatusApproved, approved.Status)

	events, err := service.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, purchaseorder.EventApprove, events[1].Type)

	var diff map[string]eventlog.FieldChange
	require.NoError(t, json.Unmarshal(events[1].Changes, &diff))
	assert.Equal(t, "draft", diff["status"].Before)
	assert.Equal(t, "approved", diff["status"].After)

	// Approval is HIGH risk: audited.
	audit := spy.byKind(oplog.KindAudit)
	require.Len(t, audit, 1)
	assert.Equal(t, "purchase_order.approve", audit[0].Action)
}

func TestService_Approve_OnlyFromDraft(t *testing.T) {
	service, _ := newService(t)
	ctx := testContext(t)

	order, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = service.Approve(ctx, order.ID, "")
	require.NoError(t, err)

	_, err = service.Approve(ctx, order.ID, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	events, err := service.History(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestService_Delete(t *testing.T) {
	service, spy := newService(t)
	ctx := testContext(t)

	order, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	deleted, err := service.Delete(ctx, order.ID, "cancelled by supplier")
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	audit := spy.byKind(oplog.KindAudit)
	require.Len(t, audit, 1)
	assert.Equal(t, "purchase_order.delete", audit[0].Action)

	// Deleted orders accept no further mutations.
	_, err = service.Approve(ctx, order.ID, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	_, err = service.Delete(ctx, order.ID, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestService_UnknownOrder(t *testing.T) {
	service, _ := newService(t)
	ctx := testContext(t)

	_, err := service.Get(ctx, "missing")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = service.Approve(ctx, "missing", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
