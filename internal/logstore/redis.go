package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gazette/internal/core"
)

const redisLogKey = "gazette:logs"

// redisStore is the remote backend: one Redis list holding every entry as
// JSON, newest pushed to the head and trimmed to maxLogs.
type redisStore struct {
	client  *redis.Client
	maxLogs int
}

// dialRedis pings addr with a short timeout and returns a connected client,
// or an error if the backend is unreachable — the caller treats that as
// "fall back to the local backend", never as a runtime failover signal.
func dialRedis(addr string, maxLogs int) (*redisStore, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("logstore: ping redis: %w", err)
	}

	return &redisStore{client: client, maxLogs: maxLogs}, nil
}

func (s *redisStore) Append(ctx context.Context, entry core.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("logstore: marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, redisLogKey, data)
	pipe.LTrim(ctx, redisLogKey, 0, int64(s.maxLogs-1))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("logstore: append: %w", err)
	}
	return nil
}

func (s *redisStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]core.LogEntry, error) {
	raw, err := s.client.LRange(ctx, redisLogKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("logstore: list: %w", err)
	}

	var out []core.LogEntry
	for i := len(raw) - 1; i >= 0; i-- {
		var entry core.LogEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			continue
		}
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		out = append(out, entry)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *redisStore) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		n, err := s.client.LLen(ctx, redisLogKey).Result()
		if err != nil {
			return 0, fmt.Errorf("logstore: count before clear: %w", err)
		}
		if err := s.client.Del(ctx, redisLogKey).Err(); err != nil {
			return 0, fmt.Errorf("logstore: clear: %w", err)
		}
		return int(n), nil
	}

	raw, err := s.client.LRange(ctx, redisLogKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("logstore: list for delete: %w", err)
	}

	kept := make([]any, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		var entry core.LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err == nil && entry.SessionID == sessionID {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	if dropped == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisLogKey)
	if len(kept) > 0 {
		pipe.RPush(ctx, redisLogKey, kept...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("logstore: rewrite after delete: %w", err)
	}
	return dropped, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
