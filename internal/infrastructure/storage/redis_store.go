package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
	"CurriculumSpider/internal/session"
)

// RedisStore keeps each session as a JSON-encoded list under prefix+id. Keys expire after the
// TTL, refreshed on every append, so Evict has nothing to do.
type RedisStore struct {
	rdb         goredis.UniversalClient
	prefix      string
	ttl         time.Duration
	maxMessages int
}

var _ ports.SessionStore = (*RedisStore)(nil)

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string) (*goredis.Client, error) {
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStore wires a connected client.
func NewRedisStore(rdb goredis.UniversalClient, prefix string, ttl time.Duration, maxMessages int) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, maxMessages: maxMessages}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Get returns the stored history.
func (s *RedisStore) Get(ctx context.Context, sessionID string) ([]domain.Message, error) {
	raw, err := s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	return decodeMessages(raw)
}

// ErrAppendConflict is returned when concurrent writers kept changing a session during Append.
var ErrAppendConflict = errors.New("session changed concurrently")

const appendAttempts = 5

// Append rewrites the session list with the new messages, trimmed to the configured bound. The
// read and the rewrite run under WATCH, so a concurrent turn on the same session makes the
// transaction fail and Append retries on the fresh list.
func (s *RedisStore) Append(ctx context.Context, sessionID string, messages ...domain.Message) error {
	key := s.key(sessionID)
	for range appendAttempts {
		err := s.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			return s.rewrite(ctx, tx, key, messages)
		}, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("redis append: %w", err)
		}
	}
	return fmt.Errorf("redis append: %w", ErrAppendConflict)
}

func (s *RedisStore) rewrite(ctx context.Context, tx *goredis.Tx, key string, messages []domain.Message) error {
	raw, err := tx.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("lrange: %w", err)
	}
	current, err := decodeMessages(raw)
	if err != nil {
		return err
	}
	encoded, err := encodeMessages(session.Trim(append(current, messages...), s.maxMessages))
	if err != nil {
		return err
	}

	_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(encoded) > 0 {
			pipe.RPush(ctx, key, encoded...)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Evict is a no-op: Redis expires idle sessions itself.
func (s *RedisStore) Evict(context.Context, time.Time) (int, error) {
	return 0, nil
}

func encodeMessages(messages []domain.Message) ([]any, error) {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		out = append(out, string(raw))
	}
	return out, nil
}

func decodeMessages(raw []string) ([]domain.Message, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.Message, 0, len(raw))
	for _, r := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
