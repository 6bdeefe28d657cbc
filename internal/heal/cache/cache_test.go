package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCache(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := New(zaptest.NewLogger(t))
	c.now = func() time.Time { return fixed }

	_, ok := c.Get("//input[@id='user-name']")
	assert.False(t, ok)

	c.Put("//input[@id='user-name']", "input.login_username", 0.42)
	e, ok := c.Get("//input[@id='user-name']")
	require.True(t, ok)
	assert.Equal(t, Entry{
		Original:  "//input[@id='user-name']",
		Healed:    "input.login_username",
		Score:     0.42,
		CreatedAt: fixed,
	}, e)

	t.Run("returned entries are copies", func(t *testing.T) {
		e.Healed = "mutated"
		again, _ := c.Get("//input[@id='user-name']")
		assert.Equal(t, "input.login_username", again.Healed)
	})

	t.Run("hits accumulate and replacement resets them", func(t *testing.T) {
		c.Hit("//input[@id='user-name']")
		c.Hit("//input[@id='user-name']")
		c.Hit("missing")
		e, _ := c.Get("//input[@id='user-name']")
		assert.Equal(t, 2, e.Hits)

		c.Put("//input[@id='user-name']", "#user", 1)
		e, _ = c.Get("//input[@id='user-name']")
		assert.Zero(t, e.Hits)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("delete", func(t *testing.T) {
		assert.True(t, c.Delete("//input[@id='user-name']"))
		assert.False(t, c.Delete("//input[@id='user-name']"))
		assert.Zero(t, c.Len())
	})
}

func TestCache_InstancesAreIsolated(t *testing.T) {
	a, b := New(nil), New(nil)
	a.Put("#x", "#y", 1)
	_, ok := b.Get("#x")
	assert.False(t, ok)
}

func TestCache_Snapshot(t *testing.T) {
	c := New(nil)
	c.Put("b", "2", 0.5)
	c.Put("a", "1", 0.6)
	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Original)
	assert.Equal(t, "b", snap[1].Original)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("k", "v", 1)
			c.Get("k")
			c.Hit("k")
			c.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
