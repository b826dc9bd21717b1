// Package redisfeed keeps a capped per-module recent-activity feed in Redis
// so back-office dashboards can show "what just happened" without querying
// the durable log storage.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"backtrail/internal/oplog"
	platformredis "backtrail/internal/platform/redis"
)

const keyPrefix = "backtrail:activity:"

// Sink writes entries to a per-module Redis list, trimmed to a fixed length.
type Sink struct {
	client *platformredis.Client
	maxLen int64
}

// New creates the feed sink. maxLen bounds each module's list.
func New(client *platformredis.Client, maxLen int64) *Sink {
	if maxLen <= 0 {
		maxLen = 100
	}
	return &Sink{client: client, maxLen: maxLen}
}

func (s *Sink) Write(ctx context.Context, entry oplog.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal feed entry: %w", err)
	}

	key := keyPrefix + entry.Module
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, s.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push feed entry: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest entries for a module, newest first.
func (s *Sink) Recent(ctx context.Context, module string, n int64) ([]oplog.Entry, error) {
	if n <= 0 || n > s.maxLen {
		n = s.maxLen
	}
	raw, err := s.client.LRange(ctx, keyPrefix+module, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	entries := make([]oplog.Entry, 0, len(raw))
	for _, item := range raw {
		var entry oplog.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decode feed entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
