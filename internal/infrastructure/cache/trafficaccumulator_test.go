package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// fakeNodeRepo records daily traffic flushes; other methods are never called.
type fakeNodeRepo struct {
	node.NodeRepository
	added map[uint]uint64
	fail  bool
}

func (f *fakeNodeRepo) AddDailyTraffic(ctx context.Context, nodeID uint, bytes uint64) error {
	if f.fail {
		return assert.AnError
	}
	if f.added == nil {
		f.added = make(map[uint]uint64)
	}
	f.added[nodeID] += bytes
	return nil
}

func TestTrafficAccumulator(t *testing.T) {
	_, client := setupRedis(t)
	repo := &fakeNodeRepo{}
	acc := NewRedisTrafficAccumulator(client, repo, logger.NewLogger())
	ctx := context.Background()

	t.Run("accumulates and reports pending", func(t *testing.T) {
		require.NoError(t, acc.Accumulate(ctx, 1, 1000))
		require.NoError(t, acc.Accumulate(ctx, 1, 500))
		require.NoError(t, acc.Accumulate(ctx, 2, 42))

		pending, err := acc.Pending(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1500), pending)

		pending, err = acc.Pending(ctx, 3)
		require.NoError(t, err)
		assert.Zero(t, pending, "unknown node has no pending traffic")
	})

	t.Run("flush drains buckets into the repository", func(t *testing.T) {
		require.NoError(t, acc.Flush(ctx))

		assert.Equal(t, uint64(1500), repo.added[1])
		assert.Equal(t, uint64(42), repo.added[2])

		pending, err := acc.Pending(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, pending, "bucket emptied after flush")
	})

	t.Run("flush failure re-credits the bucket", func(t *testing.T) {
		require.NoError(t, acc.Accumulate(ctx, 7, 900))
		repo.fail = true
		require.NoError(t, acc.Flush(ctx), "per-node failures are logged, not fatal")
		repo.fail = false

		pending, err := acc.Pending(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, uint64(900), pending, "amount preserved for the next flush")
	})
}

func TestAbuseStore(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisAbuseStore(client, logger.NewLogger())
	ctx := context.Background()

	t.Run("counts bytes and connects in the window", func(t *testing.T) {
		require.NoError(t, store.RecordBytes(ctx, 1, 1<<20))
		require.NoError(t, store.RecordBytes(ctx, 1, 1<<20))
		require.NoError(t, store.RecordConnect(ctx, 1))
		require.NoError(t, store.RecordConnect(ctx, 1))
		require.NoError(t, store.RecordConnect(ctx, 1))

		bytes, err := store.BytesInWindow(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(2<<20), bytes)

		connects, err := store.ConnectsInWindow(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), connects)

		connects, err = store.ConnectsInWindow(ctx, 2)
		require.NoError(t, err)
		assert.Zero(t, connects)
	})

	t.Run("ban expires after its duration", func(t *testing.T) {
		require.NoError(t, store.Ban(ctx, 5, time.Hour, "traffic flood"))

		banned, reason, err := store.IsBanned(ctx, 5)
		require.NoError(t, err)
		assert.True(t, banned)
		assert.Equal(t, "traffic flood", reason)

		mr.FastForward(time.Hour + time.Second)

		banned, _, err = store.IsBanned(ctx, 5)
		require.NoError(t, err)
		assert.False(t, banned)
	})

	t.Run("unban clears the flag immediately", func(t *testing.T) {
		require.NoError(t, store.Ban(ctx, 6, time.Hour, "connect churn"))
		require.NoError(t, store.Unban(ctx, 6))

		banned, _, err := store.IsBanned(ctx, 6)
		require.NoError(t, err)
		assert.False(t, banned)
	})
}
