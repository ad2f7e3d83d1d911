package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name string
	Age  int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(context.Background()))
	return c, mr
}

func TestGetOrLoadJSON_LoadsOnceThenHits(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (*profile, error) {
		atomic.AddInt32(&calls, 1)
		return &profile{Name: "Ann", Age: 30}, nil
	}

	got, err := GetOrLoadJSON(c, ctx, "user:1", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, &profile{Name: "Ann", Age: 30}, got)

	got, err = GetOrLoadJSON(c, ctx, "user:1", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("user:1"))
	assert.Equal(t, time.Minute, mr.TTL("user:1"))
}

func TestGetOrLoadJSON_CachesNil(t *testing.T) {
	c, _ := setupTestCache(t)
	var calls int32
	load := func(context.Context) (*profile, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetOrLoadJSON(c, context.Background(), "user:404", time.Minute, load)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoadJSON_LoadErrorNotCached(t *testing.T) {
	c, mr := setupTestCache(t)
	boom := errors.New("db down")

	_, err := GetOrLoadJSON(c, context.Background(), "user:2", time.Minute, func(context.Context) (*profile, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:2"))
}

func TestGetOrLoad_ConcurrentCallers(t *testing.T) {
	c, _ := setupTestCache(t)
	var calls int32
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("v"), nil
	}

	const callers = 8
	var started, wg sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			b, err := c.GetOrLoad(context.Background(), "k", time.Minute, load)
			assert.NoError(t, err)
			assert.Equal(t, []byte("v"), b)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	// late callers either join the flight or find its stored value
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoad_InvalidateDuringLoadIsNotShadowed(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	b, err := c.GetOrLoad(ctx, "user:1", time.Minute, func(ctx context.Context) ([]byte, error) {
		// a writer commits and invalidates after this read
		require.NoError(t, c.Invalidate(ctx, "user:1"))
		return []byte("old"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), b, "the caller still gets what it read")
	assert.False(t, mr.Exists("user:1"), "stale read is not stored")

	b, err = c.GetOrLoad(ctx, "user:1", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), b)
	got, err := mr.Get("user:1")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestGetOrLoad_RedisDownFallsThrough(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	b, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("v"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), b)
	assert.Error(t, c.Invalidate(context.Background(), "k"))
}

func TestInvalidate(t *testing.T) {
	c, mr := setupTestCache(t)
	require.NoError(t, mr.Set("user:1", "x"))

	require.NoError(t, c.Invalidate(context.Background(), "user:1", "user:missing"))
	assert.False(t, mr.Exists("user:1"))
	assert.NoError(t, c.Invalidate(context.Background()))
}
