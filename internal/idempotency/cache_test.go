package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpires(t *testing.T) {
	now := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)
	c := NewCache[string](time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache[int](time.Hour, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestNilCacheIsInert(t *testing.T) {
	var c *Cache[int]
	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestKeyIsCanonical(t *testing.T) {
	a, err := Key("fam-1:get_transactions", map[string]any{"period": "this_month", "limit": 10, "request_id": "x"})
	require.NoError(t, err)
	b, err := Key("fam-1:get_transactions", map[string]any{"limit": 10, "period": "this_month"})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := Key("fam-2:get_transactions", map[string]any{"limit": 10, "period": "this_month"})
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = Key(" ", nil)
	assert.Error(t, err)
}
