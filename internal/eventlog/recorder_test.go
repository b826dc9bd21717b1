package eventlog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"backtrail/internal/eventlog"
	"backtrail/internal/eventlog/mocks"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/platform/sentinel"
	"backtrail/pkg/requestcontext"
)

func TestRecorder_Record_StampsOperatorAndTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	fixedTime := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithActor(context.Background(), "ops-42")
	ctx = requestcontext.WithTime(ctx, fixedTime)

	var appended eventlog.Event
	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event eventlog.Event) (eventlog.Event, error) {
			appended = event
			event.Seq = 1
			return event, nil
		})

	recorder := eventlog.NewRecorder("payment", store)
	stored, err := recorder.Record(ctx, eventlog.Event{
		AggregateID: "pay-1",
		AggregateNo: "P-001",
		Type:        eventlog.TypeCreate,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), stored.Seq)
	assert.NotEqual(t, uuid.Nil, appended.ID)
	assert.Equal(t, "ops-42", appended.Operator)
	assert.Equal(t, fixedTime, appended.CreatedAt)
}

func TestRecorder_Record_DefaultsOperatorToSystem(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event eventlog.Event) (eventlog.Event, error) {
			assert.Equal(t, requestcontext.ActorSystem, event.Operator)
			return event, nil
		})

	recorder := eventlog.NewRecorder("payment", store)
	_, err := recorder.Record(context.Background(), eventlog.Event{
		AggregateID: "pay-1",
		Type:        eventlog.TypeCreate,
	})
	require.NoError(t, err)
}

func TestRecorder_Record_RetriesSequenceConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		store.EXPECT().
			Append(gomock.Any(), gomock.Any()).
			Return(eventlog.Event{}, sentinel.ErrConflict),
		store.EXPECT().
			Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, event eventlog.Event) (eventlog.Event, error) {
				event.Seq = 7
				return event, nil
			}),
	)

	recorder := eventlog.NewRecorder("payment", store)
	stored, err := recorder.Record(context.Background(), eventlog.Event{
		AggregateID: "pay-1",
		Type:        eventlog.TypeCreate,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.Seq)
}

func TestRecorder_Record_ConflictRetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	// retry limit 2 means 3 attempts in total
	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(eventlog.Event{}, sentinel.ErrConflict).
		Times(3)

	recorder := eventlog.NewRecorder("payment", store, eventlog.WithRetryLimit(2))
	_, err := recorder.Record(context.Background(), eventlog.Event{
		AggregateID: "pay-1",
		Type:        eventlog.TypeCreate,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestRecorder_Record_StorageFailureIsUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return(eventlog.Event{}, errors.New("connection reset"))

	recorder := eventlog.NewRecorder("payment", store)
	_, err := recorder.Record(context.Background(), eventlog.Event{
		AggregateID: "pay-1",
		Type:        eventlog.TypeCreate,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestRecorder_Record_RejectsIncompleteEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	recorder := eventlog.NewRecorder("payment", store)

	_, err := recorder.Record(context.Background(), eventlog.Event{Type: eventlog.TypeCreate})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = recorder.Record(context.Background(), eventlog.Event{AggregateID: "pay-1"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestRecorder_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)

	events := []eventlog.Event{
		{AggregateID: "pay-1", Seq: 1, Type: eventlog.TypeCreate},
		{AggregateID: "pay-1", Seq: 2, Type: eventlog.TypeDelete},
	}
	store.EXPECT().
		ListByAggregate(gomock.Any(), "pay-1").
		Return(events, nil)

	recorder := eventlog.NewRecorder("payment", store)
	got, err := recorder.History(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, events, got)

	_, err = recorder.History(context.Background(), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
