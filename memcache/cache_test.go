package memcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, err := New[string]()
	require.NoError(t, err)

	c.Put("r1", "tomato soup")

	ent, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "tomato soup", ent.Value)
	assert.False(t, ent.FetchedAt.IsZero())

	_, ok = c.Get("r2")
	assert.False(t, ok)
	assert.True(t, c.Has("r1"))
	assert.False(t, c.Has("r2"))
	assert.Equal(t, 1, c.Len())
}

func TestCachePutOverwrites(t *testing.T) {
	t.Parallel()

	c, err := New[int]()
	require.NoError(t, err)

	c.Put("r1", 1)
	c.Put("r1", 2)

	ent, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 2, ent.Value)
	assert.Equal(t, 1, c.Len())
}

func TestCacheNeverExpiresByDefault(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }
	c, err := New[string](WithMaxAge(30*time.Minute), WithClock(clock))
	require.NoError(t, err)

	c.Put("r1", "old")
	now = now.Add(48 * time.Hour)

	// Stale-while-revalidate is off: the entry is neither stale nor gone.
	ent, ok := c.Get("r1")
	require.True(t, ok)
	assert.Equal(t, "old", ent.Value)
	assert.False(t, c.Stale("r1"))
}

func TestCacheStaleWhileRevalidate(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		refreshed []string
	)
	now := time.Now()
	clock := func() time.Time { return now }
	c, err := New[string](
		WithMaxAge(30*time.Minute),
		WithStaleWhileRevalidate(true),
		WithClock(clock),
		WithRefreshHook(func(id string) {
			mu.Lock()
			refreshed = append(refreshed, id)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)

	c.Put("r1", "v1")
	assert.False(t, c.Stale("r1"))

	// Within the window: no refresh.
	now = now.Add(29 * time.Minute)
	_, ok := c.Get("r1")
	require.True(t, ok)
	assert.Empty(t, refreshed)

	// Past the window: still readable, refresh hook fires.
	now = now.Add(2 * time.Minute)
	assert.True(t, c.Stale("r1"))
	ent, ok := c.Get("r1")
	require.True(t, ok, "stale entry must remain readable")
	assert.Equal(t, "v1", ent.Value)
	assert.Equal(t, []string{"r1"}, refreshed)

	// A fresh Put resets the window.
	c.Put("r1", "v2")
	assert.False(t, c.Stale("r1"))
}

func TestCacheStaleWhileRevalidateRequiresMaxAge(t *testing.T) {
	t.Parallel()

	_, err := New[string](WithStaleWhileRevalidate(true))
	require.Error(t, err)
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c, err := New[string]()
	require.NoError(t, err)

	c.Put("r1", "x")
	c.Delete("r1")
	assert.False(t, c.Has("r1"))
	assert.Equal(t, 0, c.Len())
}

func TestCacheIDs(t *testing.T) {
	t.Parallel()

	c, err := New[int]()
	require.NoError(t, err)

	c.Put("a", 1)
	c.Put("b", 2)
	assert.ElementsMatch(t, []string{"a", "b"}, c.IDs())
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c, err := New[int]()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := string(rune('a' + n))
				c.Put(id, j)
				c.Get(id)
				c.Has(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
