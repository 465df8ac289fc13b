package predlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
)

// Default Redis names for the log list and its notification channel.
const (
	DefaultRedisKey     = "risk:predictions"
	DefaultRedisChannel = "risk:predictions"
)

// RedisSink keeps the log as a Redis list of JSON entries and publishes
// each new entry on a channel for live consumers.
type RedisSink struct {
	client  redis.UniversalClient
	key     string
	channel string
}

// NewRedisSink returns a sink on client. An empty channel disables
// publishing.
func NewRedisSink(client redis.UniversalClient, key, channel string) *RedisSink {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSink{client: client, key: key, channel: channel}
}

// Append pushes e onto the list and publishes it in one transaction.
func (s *RedisSink) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// All reads the whole list.
func (s *RedisSink) All(ctx context.Context) ([]Entry, error) {
	return s.rangeEntries(ctx, 0, -1)
}

// Tail reads the last n list items.
func (s *RedisSink) Tail(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		if _, err := s.rangeEntries(ctx, 0, 0); err != nil {
			return nil, err
		}
		return []Entry{}, nil
	}
	return s.rangeEntries(ctx, -int64(n), -1)
}

// Export writes the list as CSV.
func (s *RedisSink) Export(ctx context.Context, w io.Writer) error {
	entries, err := s.All(ctx)
	if err != nil {
		return err
	}
	return WriteCSV(w, entries)
}

func (s *RedisSink) rangeEntries(ctx context.Context, start, stop int64) ([]Entry, error) {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis exists: %w", err)
	}
	if n == 0 {
		return nil, ErrLogNotFound
	}

	vals, err := s.client.LRange(ctx, s.key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	entries := make([]Entry, 0, len(vals))
	for i, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
