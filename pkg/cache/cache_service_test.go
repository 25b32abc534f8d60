package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("Set then get", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", cachedValue{Name: "a", Count: 2}, time.Minute))

		var got cachedValue
		require.NoError(t, c.Get(ctx, "k", &got))
		assert.Equal(t, cachedValue{Name: "a", Count: 2}, got)
	})

	t.Run("Miss", func(t *testing.T) {
		c := NewMemoryCache()
		var got cachedValue
		assert.ErrorIs(t, c.Get(ctx, "missing", &got), ErrCacheMiss)
	})

	t.Run("Expired entry is a miss", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "k", 1, time.Nanosecond))
		time.Sleep(time.Millisecond)

		var got int
		assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
	})

	t.Run("Delete several keys", func(t *testing.T) {
		c := NewMemoryCache()
		require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
		require.NoError(t, c.Set(ctx, "b", 2, time.Minute))

		require.NoError(t, c.Delete(ctx, "a", "b"))

		var got int
		assert.ErrorIs(t, c.Get(ctx, "a", &got), ErrCacheMiss)
		assert.ErrorIs(t, c.Get(ctx, "b", &got), ErrCacheMiss)
	})
}
