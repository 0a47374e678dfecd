//go:build integration

package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replyreminder/replyreminder/internal/cache"
	"github.com/replyreminder/replyreminder/internal/testutil"
)

func newTestCache(t *testing.T) (context.Context, *cache.Cache) {
	t.Helper()
	ctx := context.Background()

	c, err := cache.New(ctx, testutil.RequireEnv(t, "REDIS_URL"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, testutil.FlushRedis(ctx, c.Client()))
	return ctx, c
}

func TestIntegrationIdentity_RoundTrip(t *testing.T) {
	ctx, c := newTestCache(t)

	_, ok := c.GetIdentity(ctx, "tokhash")
	assert.False(t, ok)

	require.NoError(t, c.SetIdentity(ctx, "tokhash", "g1"))

	gsid, ok := c.GetIdentity(ctx, "tokhash")
	assert.True(t, ok)
	assert.Equal(t, "g1", gsid)
}

func TestIntegrationServiceToken_Verified(t *testing.T) {
	ctx, c := newTestCache(t)

	assert.False(t, c.IsServiceTokenVerified(ctx, "h"))
	require.NoError(t, c.MarkServiceTokenVerified(ctx, "h"))
	assert.True(t, c.IsServiceTokenVerified(ctx, "h"))
}

func TestIntegrationLock_Exclusive(t *testing.T) {
	ctx, c := newTestCache(t)

	lock, err := c.AcquireLock(ctx, "dispatcher", time.Minute)
	require.NoError(t, err)

	_, err = c.AcquireLock(ctx, "dispatcher", time.Minute)
	assert.True(t, errors.Is(err, cache.ErrLockHeld))

	require.NoError(t, lock.Release(ctx))

	again, err := c.AcquireLock(ctx, "dispatcher", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestIntegrationLock_ReleaseAfterExpiryKeepsNewHolder(t *testing.T) {
	ctx, c := newTestCache(t)

	stale, err := c.AcquireLock(ctx, "dispatcher", 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	current, err := c.AcquireLock(ctx, "dispatcher", time.Minute)
	require.NoError(t, err)

	// The stale holder must not delete the new holder's lock.
	require.NoError(t, stale.Release(ctx))
	_, err = c.AcquireLock(ctx, "dispatcher", time.Minute)
	assert.True(t, errors.Is(err, cache.ErrLockHeld))

	require.NoError(t, current.Release(ctx))
}

func TestIntegrationIPRateLimit_Concurrency(t *testing.T) {
	ctx, c := newTestCache(t)

	rps, burst := 1, 5
	var allowed, rejected int64

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				result, err := c.CheckIPRateLimit(ctx, "192.0.2.1", rps, burst)
				if err != nil {
					t.Errorf("CheckIPRateLimit error: %v", err)
					return
				}
				if result.Allowed {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, int64(burst+rps*2))
	assert.Positive(t, rejected)
}
