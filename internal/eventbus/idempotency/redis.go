package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared, multi-replica idempotency store, the explicit
// extension point named in Design Notes §9: swap MemoryStore for this when
// running more than one Order service replica.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client. Keys are namespaced under prefix (default
// "idempotency:") to avoid collisions with other uses of the same Redis
// instance.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "idempotency:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string { return s.prefix + key }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	orderID, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// Put stores key -> orderID only if absent (NX), matching the "mint once"
// semantics of the create endpoint: a racing duplicate request must not
// stomp on an orderId already recorded by the winner.
func (s *RedisStore) Put(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return s.client.SetNX(ctx, s.key(key), orderID, ttl).Err()
}

var _ Store = (*RedisStore)(nil)
