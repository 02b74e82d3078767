package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) (*InvestigationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewInvestigationCacheWithClient(client, time.Hour, zaptest.NewLogger(t))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestInvestigationCache_MarkAndCheck(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	done, err := c.WasCompleted(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, c.MarkCompleted(ctx, "acct-1"))

	done, err = c.WasCompleted(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, done)

	// Other entities are unaffected
	done, err = c.WasCompleted(ctx, "acct-2")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestInvestigationCache_TTLExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkCompleted(ctx, "acct-1"))
	mr.FastForward(2 * time.Hour)

	done, err := c.WasCompleted(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestInvestigationCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.MarkCompleted(ctx, "acct-1"))
	require.NoError(t, c.Invalidate(ctx, "acct-1"))

	done, err := c.WasCompleted(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestInvestigationCache_ErrorSurfaced(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, err := c.WasCompleted(context.Background(), "acct-1")
	assert.Error(t, err)
}
