package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/ticketdesk/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_FetchCachesValue(t *testing.T) {
	cache := New(Config{TTL: time.Minute})

	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	v, err := cache.Fetch(context.Background(), "tickets", fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = cache.Fetch(context.Background(), "tickets", fn)
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_EntriesExpire(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := New(Config{TTL: time.Minute, Clock: fake})

	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	_, err := cache.Fetch(context.Background(), "k", fn)
	require.NoError(t, err)

	fake.Advance(2 * time.Minute)

	v, err := cache.Fetch(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	cache := New(Config{})

	_, err := cache.Fetch(context.Background(), "k", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentFetchSharesFlight(t *testing.T) {
	cache := New(Config{TTL: time.Minute})

	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]interface{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Fetch(context.Background(), "k", fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}

func TestCache_ClearDiscardsInFlightResult(t *testing.T) {
	cache := New(Config{TTL: time.Minute})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = cache.Fetch(context.Background(), "profile", func(ctx context.Context) (interface{}, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	cache.Clear()
	close(release)
	<-done

	_, ok := cache.Get("profile")
	assert.False(t, ok)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	cache := New(Config{TTL: time.Minute})
	ctx := context.Background()
	value := func(v string) FetchFunc {
		return func(context.Context) (interface{}, error) { return v, nil }
	}

	_, _ = cache.Fetch(ctx, "tickets", value("list"))
	_, _ = cache.Fetch(ctx, "tickets/1", value("one"))
	_, _ = cache.Fetch(ctx, "users", value("users"))

	assert.Equal(t, 2, cache.Invalidate("tickets"))
	_, ok := cache.Get("users")
	assert.True(t, ok)
	assert.Equal(t, 1, cache.Len())
}
