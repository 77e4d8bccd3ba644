package state

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client, hclog.NewNullLogger()), mr
}

func TestRedisStore_Strings(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", val)
}

func TestRedisStore_Lease(t *testing.T) {
	s, mr := testRedisStore(t)
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "job:lock:j1", "node-a", 300*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetNX(ctx, "job:lock:j1", "node-b", 300*time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	// Release is holder-gated and atomic.
	ok, err = s.CompareAndDelete(ctx, "job:lock:j1", "node-b")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, mr.Exists("job:lock:j1"))

	ok, err = s.CompareAndDelete(ctx, "job:lock:j1", "node-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, mr.Exists("job:lock:j1"))
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := testRedisStore(t)
	ctx := context.Background()

	// Missing key.
	_, exists, err := s.TTL(ctx, "nope")
	require.NoError(t, err)
	require.False(t, exists)

	// No expiration.
	require.NoError(t, s.Set(ctx, "p", "v", 0))
	ttl, exists, err := s.TTL(ctx, "p")
	require.NoError(t, err)
	require.True(t, exists)
	require.Zero(t, ttl)

	// With expiration, then past it.
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	ttl, exists, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	require.True(t, exists)
	require.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, exists, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	require.False(t, exists)

	ok, err := s.Expire(ctx, "p", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStore_Hashes(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, s.HSet(ctx, "h", map[string]string{"b": "3"}))

	val, ok, err := s.HGet(ctx, "h", "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", val)

	all, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "b": "3"}, all)

	require.NoError(t, s.HDel(ctx, "h", "a"))
	all, _ = s.HGetAll(ctx, "h")
	require.Equal(t, map[string]string{"b": "3"}, all)
}

func TestRedisStore_Sets(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SAdd(ctx, "s", "a", "b"))
	card, err := s.SCard(ctx, "s")
	require.NoError(t, err)
	require.Equal(t, int64(2), card)

	members, err := s.SMembers(ctx, "s")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, s.SRem(ctx, "s", "a"))
	members, _ = s.SMembers(ctx, "s")
	require.Equal(t, []string{"b"}, members)
}

func TestRedisStore_ZSets(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	// Priority-queue shape: negative scores sort first.
	require.NoError(t, s.ZAdd(ctx, "q", "high", -10_000_000+1000))
	require.NoError(t, s.ZAdd(ctx, "q", "low", 2000))
	require.NoError(t, s.ZAdd(ctx, "q", "mid", -5_000_000+1500))

	members, err := s.ZRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{"high", "mid", "low"}, members)

	members, err = s.ZRangeByScore(ctx, "q", math.Inf(-1), 0)
	require.NoError(t, err)
	require.Equal(t, []string{"high", "mid"}, members)

	score, ok, err := s.ZScore(ctx, "q", "low")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(2000), score)

	_, ok, err = s.ZScore(ctx, "q", "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.ZRem(ctx, "q", "high"))
	card, err := s.ZCard(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, int64(2), card)
}

func TestRedisStore_Keys(t *testing.T) {
	s, _ := testRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "node:aaa", "x", 0))
	require.NoError(t, s.Set(ctx, "node:bbb", "x", 0))
	require.NoError(t, s.Set(ctx, "job:ccc", "x", 0))

	keys, err := s.Keys(ctx, "node:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"node:aaa", "node:bbb"}, keys)
}
