package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/types"
)

// MemoryPositionStore keeps the ledger in process memory only.
type MemoryPositionStore struct {
	mu        sync.Mutex
	positions []types.Position
}

var _ interfaces.PositionStore = (*MemoryPositionStore)(nil)

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{}
}

func (m *MemoryPositionStore) Load(ctx context.Context) ([]types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Position(nil), m.positions...), nil
}

func (m *MemoryPositionStore) Save(ctx context.Context, positions []types.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append([]types.Position(nil), positions...)
	return nil
}

// RedisPositionStore persists the ledger as one JSON document under a key.
// Every save is mirrored in memory so a Redis outage still leaves the last
// known ledger readable.
type RedisPositionStore struct {
	client   redis.Cmdable
	key      string
	timeout  time.Duration
	fallback *MemoryPositionStore
}

var _ interfaces.PositionStore = (*RedisPositionStore)(nil)

func NewRedisPositionStore(client redis.Cmdable, key string, timeout time.Duration) *RedisPositionStore {
	return &RedisPositionStore{
		client:   client,
		key:      key,
		timeout:  timeout,
		fallback: NewMemoryPositionStore(),
	}
}

func (r *RedisPositionStore) Load(ctx context.Context) ([]types.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		cached, _ := r.fallback.Load(ctx)
		return cached, fmt.Errorf("failed to load positions from redis: %w", err)
	}

	var positions []types.Position
	if err := json.Unmarshal([]byte(raw), &positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	_ = r.fallback.Save(ctx, positions)
	return positions, nil
}

func (r *RedisPositionStore) Save(ctx context.Context, positions []types.Position) error {
	_ = r.fallback.Save(ctx, positions)

	if positions == nil {
		positions = []types.Position{}
	}
	b, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key, string(b), 0).Err(); err != nil {
		return fmt.Errorf("failed to save positions to redis: %w", err)
	}
	return nil
}

// NewPositionStore connects to Redis when url is set and reachable, and
// falls back to an in-memory store otherwise.
func NewPositionStore(ctx context.Context, url, key string, timeout time.Duration) interfaces.PositionStore {
	if url == "" {
		logger.Info(ctx, "REDIS_URL not set, positions kept in memory only")
		return NewMemoryPositionStore()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn(ctx, "Invalid REDIS_URL, positions kept in memory only", "error", err)
		return NewMemoryPositionStore()
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn(ctx, "Redis unreachable, positions kept in memory only", "error", err)
		_ = client.Close()
		return NewMemoryPositionStore()
	}

	logger.Info(ctx, "Position store connected to redis", "key", key)
	return NewRedisPositionStore(client, key, timeout)
}
