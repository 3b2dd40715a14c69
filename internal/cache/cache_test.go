package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the cache's notion of time in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, capacity int, ttl, tti time.Duration) (*Cache[string], *fakeClock) {
	t.Helper()
	c, err := New[string](capacity, ttl, tti)
	require.NoError(t, err)
	clock := newFakeClock()
	c.now = clock.Now
	return c, clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", "value")
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(t, 10, 100*time.Minute, 10*time.Minute)

	c.Set("key", "value")

	// Keep the entry warm so only the insertion timer can expire it.
	for i := 0; i < 20; i++ {
		clock.Advance(5 * time.Minute)
		c.Get("key")
	}

	_, ok := c.Get("key")
	assert.False(t, ok, "entry should expire a fixed interval after insertion even under constant access")
}

func TestCache_ExpiresAfterIdle(t *testing.T) {
	c, clock := newTestCache(t, 10, 100*time.Minute, 10*time.Minute)

	c.Set("key", "value")

	clock.Advance(9 * time.Minute)
	_, ok := c.Get("key")
	require.True(t, ok, "entry should survive below the idle threshold")

	clock.Advance(10 * time.Minute)
	_, ok = c.Get("key")
	assert.False(t, ok, "entry should expire once idle")
}

func TestCache_AccessRefreshesIdleTimer(t *testing.T) {
	c, clock := newTestCache(t, 10, 100*time.Minute, 10*time.Minute)

	c.Set("key", "value")

	for i := 0; i < 5; i++ {
		clock.Advance(9 * time.Minute)
		_, ok := c.Get("key")
		require.True(t, ok)
	}
}

func TestCache_CapacityEvictsLRU(t *testing.T) {
	c, _ := newTestCache(t, 2, time.Hour, time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_GetOrComputeCoalesces(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour, time.Hour)

	var computations atomic.Int32
	release := make(chan struct{})

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]string, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute("key", func() (string, error) {
				computations.Add(1)
				<-release
				return "computed", nil
			})
		}(i)
	}

	// Give every goroutine a chance to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), computations.Load(), "concurrent misses must collapse into one computation")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "computed", results[i])
	}
}

func TestCache_GetOrComputeDoesNotStoreErrors(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour, time.Hour)

	var calls atomic.Int32
	compute := func() (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("upstream down")
		}
		return "recovered", nil
	}

	_, err := c.GetOrCompute("key", compute)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	got, err := c.GetOrCompute("key", compute)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_GetOrComputeHit(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour, time.Hour)
	c.Set("key", "cached")

	got, err := c.GetOrCompute("key", func() (string, error) {
		t.Fatal("compute should not run on a cache hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", got)
}

func TestCache_InvalidateIf(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Hour, time.Hour)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("key-%d", i), fmt.Sprintf("%d", i))
	}

	removed := c.InvalidateIf(func(key string, value string) bool {
		return value == "1" || value == "3"
	})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 3, c.Len())

	_, ok := c.Get("key-1")
	assert.False(t, ok)
	_, ok = c.Get("key-0")
	assert.True(t, ok)
}
