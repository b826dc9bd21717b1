// Package kafka ships log entries to Kafka, one topic per entry kind, keyed
// by trace id so all lines of one request land in the same partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"backtrail/internal/oplog"
	"backtrail/internal/platform/config"
)

// Sink produces entries to the business and audit topics.
type Sink struct {
	client        *kgo.Client
	businessTopic string
	auditTopic    string
}

// New connects to the brokers and ensures both topics exist.
func New(ctx context.Context, cfg config.KafkaConfig) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	if err := ensureTopics(ctx, client, cfg.BusinessTopic, cfg.AuditTopic); err != nil {
		client.Close()
		return nil, err
	}

	return &Sink{
		client:        client,
		businessTopic: cfg.BusinessTopic,
		auditTopic:    cfg.AuditTopic,
	}, nil
}

func ensureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Write produces one entry and waits for broker acknowledgement within the
// caller's deadline. The oplog publisher already decoupled us from the
// request path, so blocking here is fine.
func (s *Sink) Write(ctx context.Context, entry oplog.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	topic := s.businessTopic
	if entry.Kind == oplog.KindAudit {
		topic = s.auditTopic
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(entry.TraceID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce log entry: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
