package core

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-studio/atelier/pkg/types"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })
	return NewCache(cli, "atelier"), mr
}

func TestCacheGetSetExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	require.NoError(t, c.SetEx(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.True(t, mr.Exists("atelier:k"))

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func TestCacheJSONAndScan(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type snapshot struct {
		Progress float64 `json:"progress"`
	}
	require.NoError(t, types.CacheSetJSON(ctx, c, "working:s1:a", snapshot{Progress: 0.5}, time.Minute))
	require.NoError(t, types.CacheSetJSON(ctx, c, "working:s1:b", snapshot{Progress: 1}, time.Minute))
	require.NoError(t, c.SetEx(ctx, "working:s2:a", "x", time.Minute))

	got, err := types.CacheGetJSON[snapshot](ctx, c, "working:s1:a")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Progress)

	keys, err := c.Scan(ctx, "working:s1:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"working:s1:a", "working:s1:b"}, keys)

	require.NoError(t, c.Del(ctx, keys...))
	keys, err = c.Scan(ctx, "working:s1:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
