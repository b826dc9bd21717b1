//go:build integration

package payments_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtrail/internal/eventlog"
	eventpostgres "backtrail/internal/eventlog/store/postgres"
	"backtrail/internal/oplog/interceptor"
	"backtrail/internal/payments"
	txcontext "backtrail/pkg/platform/tx"
	"backtrail/pkg/testutil/containers"
)

const paymentsDDL = `
CREATE TABLE IF NOT EXISTS payments (
    id          UUID PRIMARY KEY,
    payment_no  TEXT NOT NULL UNIQUE,
    currency    TEXT NOT NULL,
    rate        TEXT NOT NULL,
    amount      TEXT NOT NULL,
    deleted     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
)`

const paymentEventsDDL = `
CREATE TABLE IF NOT EXISTS payment_events (
    id            UUID PRIMARY KEY,
    aggregate_id  TEXT NOT NULL,
    aggregate_no  TEXT NOT NULL,
    event_type    TEXT NOT NULL,
    event_seq     BIGINT NOT NULL,
    changes       JSONB NOT NULL,
    operator      TEXT NOT NULL,
    note          TEXT,
    created_at    TIMESTAMPTZ NOT NULL,
    UNIQUE (aggregate_id, event_seq)
)`

// The locked read serializes same-row transactions: a second reader waits for
// the first writer's commit and then sees the committed state, never the
// value both started from.
func TestPostgresStore_GetForUpdateBlocksConcurrentWriter(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Apply(t, paymentsDDL)

	store := payments.NewPostgresStore(pg.DB)
	ctx := context.Background()

	now := time.Now().UTC()
	seed := payments.Payment{
		ID:        uuid.NewString(),
		PaymentNo: "P-100",
		Currency:  "EUR",
		Rate:      "1.0842",
		Amount:    "100.00",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, seed))

	first, err := pg.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	locked, err := store.GetForUpdate(txcontext.WithTx(ctx, first), seed.ID)
	require.NoError(t, err)

	type result struct {
		payment payments.Payment
		err     error
	}
	res := make(chan result, 1)
	go func() {
		second, err := pg.DB.BeginTx(ctx, nil)
		if err != nil {
			res <- result{err: err}
			return
		}
		defer second.Rollback()
		p, err := store.GetForUpdate(txcontext.WithTx(ctx, second), seed.ID)
		res <- result{payment: p, err: err}
	}()

	// Give the second reader time to reach the row lock before releasing it.
	time.Sleep(300 * time.Millisecond)
	locked.Rate = "1.2000"
	require.NoError(t, store.Update(txcontext.WithTx(ctx, first), locked))
	require.NoError(t, first.Commit())

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "1.2000", r.payment.Rate)
}

// Two racing rate changes must record chained diffs: the trail replays the
// initial rate through the first write into the second, instead of both
// events claiming the same "before".
func TestService_ConcurrentRateChangesRecordChainedDiffs(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	pg.Apply(t, paymentsDDL, paymentEventsDDL)

	eventStore, err := eventpostgres.New(pg.DB, "payment_events")
	require.NoError(t, err)
	service := payments.NewService(
		payments.NewPostgresStore(pg.DB),
		eventlog.NewRecorder("payment", eventStore, eventlog.WithRetryLimit(20)),
		txcontext.NewSQLRunner(pg.DB),
		interceptor.New(&oplogSpy{}),
	)
	ctx := testContext(t)

	payment, err := service.Create(ctx, validInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, rate := range []string{"2.0000", "3.0000"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.ChangeRate(ctx, payment.ID, rate, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := service.History(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)

	var first, second map[string]eventlog.FieldChange
	require.NoError(t, json.Unmarshal(events[1].Changes, &first))
	require.NoError(t, json.Unmarshal(events[2].Changes, &second))
	assert.Equal(t, "1.0842", first["rate"].Before)
	assert.Equal(t, first["rate"].After, second["rate"].Before)
	assert.ElementsMatch(t,
		[]any{"2.0000", "3.0000"},
		[]any{first["rate"].After, second["rate"].After},
	)
}
