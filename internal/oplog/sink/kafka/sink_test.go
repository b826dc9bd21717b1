//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"backtrail/internal/oplog"
	kafkasink "backtrail/internal/oplog/sink/kafka"
	"backtrail/internal/platform/config"
	"backtrail/pkg/testutil/containers"
)

func testEntry(kind oplog.Kind) oplog.Entry {
	return oplog.Entry{
		TraceID:   "trace-77",
		Kind:      kind,
		Module:    "payments",
		Action:    "payment.delete",
		Risk:      oplog.RiskMedium,
		Actor:     "ops-42",
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		Outcome:   oplog.OutcomeSuccess,
		Detail:    "payment P-001 deleted",
	}
}

func TestSink_RoutesEntriesByKind(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)

	cfg := config.KafkaConfig{
		Brokers:       []string{rp.Broker},
		BusinessTopic: "backtrail.business.test",
		AuditTopic:    "backtrail.audit.test",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := kafkasink.New(ctx, cfg)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Write(ctx, testEntry(oplog.KindBusiness)))
	require.NoError(t, sink.Write(ctx, testEntry(oplog.KindAudit)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.BusinessTopic, cfg.AuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	byTopic := map[string][]oplog.Entry{}
	deadline := time.Now().Add(20 * time.Second)
	for len(byTopic[cfg.BusinessTopic]) == 0 || len(byTopic[cfg.AuditTopic]) == 0 {
		require.False(t, time.Now().After(deadline), "timed out waiting for records")

		pollCtx, pollCancel := context.WithTimeout(ctx, 2*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		pollCancel()
		fetches.EachRecord(func(record *kgo.Record) {
			assert.Equal(t, "trace-77", string(record.Key))
			var entry oplog.Entry
			require.NoError(t, json.Unmarshal(record.Value, &entry))
			byTopic[record.Topic] = append(byTopic[record.Topic], entry)
		})
	}

	business := byTopic[cfg.BusinessTopic]
	require.Len(t, business, 1)
	assert.Equal(t, oplog.KindBusiness, business[0].Kind)
	assert.Equal(t, "payment.delete", business[0].Action)

	audit := byTopic[cfg.AuditTopic]
	require.Len(t, audit, 1)
	assert.Equal(t, oplog.KindAudit, audit[0].Kind)
	assert.Equal(t, "ops-42", audit[0].Actor)
}

func TestSink_TopicCreationIsIdempotent(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)

	cfg := config.KafkaConfig{
		Brokers:       []string{rp.Broker},
		BusinessTopic: "backtrail.business.idem",
		AuditTopic:    "backtrail.audit.idem",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first, err := kafkasink.New(ctx, cfg)
	require.NoError(t, err)
	first.Close()

	second, err := kafkasink.New(ctx, cfg)
	require.NoError(t, err)
	second.Close()
}
