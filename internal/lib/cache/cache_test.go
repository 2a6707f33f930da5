package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestProgramCacheRoundTrip(t *testing.T) {
	_, rdb := newRedis(t)
	c := NewProgramCache(rdb, time.Minute)
	ctx := context.Background()

	miss, err := c.GetByID(ctx, "prog_1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	p := &model.Program{ID: "prog_1", Slug: "acme", Name: "Acme", HoldingPeriodDays: 30}
	require.NoError(t, c.Set(ctx, p))

	byID, err := c.GetByID(ctx, "prog_1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Acme", byID.Name)

	bySlug, err := c.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, "prog_1", bySlug.ID)

	require.NoError(t, c.Invalidate(ctx, p))
	gone, err := c.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestProgramCacheExpires(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewProgramCache(rdb, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &model.Program{ID: "prog_2", Slug: "beta"}))
	mr.FastForward(2 * time.Minute)

	got, err := c.GetByID(ctx, "prog_2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFixedWindowLimiter(t *testing.T) {
	_, rdb := newRedis(t)
	l := NewFixedWindowLimiter(rdb, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, remaining, err := l.Allow(ctx, "ws_1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2-i, remaining)
	}

	ok, remaining, err := l.Allow(ctx, "ws_1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, remaining)

	ok, _, err = l.Allow(ctx, "ws_2", 3)
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted independently")
}
