package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"travel-agent/internal/domain"
)

const redisKeyPrefix = "travel:conv:"

// RedisStore keeps each conversation as one JSON document with a TTL that is
// refreshed on every write.
type RedisStore struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	maxHistory int
}

type RedisOption func(*RedisStore)

func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithRedisMaxHistory(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// NewRedis opens a client for addr.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewRedisStore(rdb redis.Cmdable, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	s := &RedisStore{rdb: rdb, ttl: DefaultTTL, maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func redisKey(conversationID string) string {
	return redisKeyPrefix + conversationID
}

func (s *RedisStore) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	raw, err := s.rdb.Get(ctx, redisKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: redis get: %w", err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("repository: redis decode: %w", err)
	}
	state.ID = conversationID
	return &state, nil
}

func (s *RedisStore) Put(ctx context.Context, state *domain.ConversationState) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return errors.New("repository: Put: conversation id is required")
	}
	stored := state.Clone()
	stored.History = stored.Window(s.maxHistory)
	stored.Persisted = state.LastSeq()

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("repository: redis encode: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(state.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("repository: redis set: %w", err)
	}
	state.Persisted = stored.Persisted
	return nil
}
