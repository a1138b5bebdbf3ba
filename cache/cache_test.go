package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_BasicOperations(t *testing.T) {
	c := New[string, int](Config{Name: "test", MaxSize: 100, TTL: time.Minute})

	c.Set("key1", 100)
	value, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, 100, value)

	_, found = c.Get("nonexistent")
	assert.False(t, found)

	assert.True(t, c.Delete("key1"))
	_, found = c.Get("key1")
	assert.False(t, found)
	assert.False(t, c.Delete("key1"))
}

func TestCache_Update(t *testing.T) {
	c := New[int64, string](Config{Name: "test", MaxSize: 100})

	c.Set(1, "first")
	c.Set(1, "second")
	value, found := c.Get(1)
	require.True(t, found)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, c.Size())
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int, string](Config{Name: "test", MaxSize: 3})

	c.Set(1, "one")
	c.Set(2, "two")
	c.Set(3, "three")

	// 访问 1 使其成为最近使用的
	_, found := c.Get(1)
	require.True(t, found)

	c.Set(4, "four")
	assert.Equal(t, 3, c.Size())

	_, found = c.Get(2)
	assert.False(t, found, "最久未使用的 2 应被驱逐")
	_, found = c.Get(1)
	assert.True(t, found)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_TTLExpiration(t *testing.T) {
	c := New[string, int](Config{Name: "ttl", MaxSize: 10, TTL: 50 * time.Millisecond})
	c.Set("k", 1)

	_, found := c.Get("k")
	require.True(t, found)

	time.Sleep(80 * time.Millisecond)
	_, found = c.Get("k")
	assert.False(t, found)
}

func TestCache_StatsAndClear(t *testing.T) {
	c := New[string, int](Config{MaxSize: 10})
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, 1, s.Size)
	assert.InDelta(t, 2.0/3.0, c.HitRate(), 0.0001)
	assert.Contains(t, c.String(), "Cache[unnamed]")

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](Config{MaxSize: 50})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n*100+j, j)
				c.Get(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 50)
}
