package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_PutThenGet(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "idem-123", "ord_1", time.Hour))

	orderID, found, err := s.Get(ctx, "idem-123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ord_1", orderID)
}

func TestRedisStore_MissingKey(t *testing.T) {
	s, _ := newTestRedisStore(t)
	_, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_ExpiresAfterTTL(t *testing.T) {
	s, mr := newTestRedisStore(t)
	require.NoError(t, s.Put(context.Background(), "idem-1", "ord_1", time.Second))
	mr.FastForward(2 * time.Second)

	_, found, err := s.Get(context.Background(), "idem-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_SecondPutDoesNotOverwrite(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "idem-1", "ord_1", time.Hour))
	require.NoError(t, s.Put(ctx, "idem-1", "ord_2", time.Hour))

	orderID, found, err := s.Get(ctx, "idem-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ord_1", orderID, "NX put must not overwrite the winning orderId")
}

func TestMemoryStore_PutThenGet(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Now()
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "idem-123", "ord_1", time.Hour))
	orderID, found, err := s.Get(ctx, "idem-123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ord_1", orderID)

	s.now = func() time.Time { return fixed.Add(2 * time.Hour) }
	_, found, err = s.Get(ctx, "idem-123")
	require.NoError(t, err)
	assert.False(t, found, "entry must expire after its TTL")
}
