package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AllowOncePerInterval(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	ctx := t.Context()

	ok, err := m.Allow(ctx, "post:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.Allow(ctx, "post:1", 10*time.Second)
	assert.False(t, ok, "second call inside the window")

	ok, _ = m.Allow(ctx, "post:2", 10*time.Second)
	assert.True(t, ok, "other keys are independent")

	now = now.Add(10 * time.Second)
	ok, _ = m.Allow(ctx, "post:1", 10*time.Second)
	assert.True(t, ok, "window elapsed")
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	r, err := Dial(mr.Addr(), "test:")
	require.NoError(t, err)

	t.Cleanup(func() {
		r.Close()
		mr.Close()
	})
	return r, mr
}

func TestRedis_AllowOncePerInterval(t *testing.T) {
	t.Parallel()
	r, mr := setupRedis(t)
	ctx := t.Context()

	ok, err := r.Allow(ctx, "post:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:post:1"))

	ok, err = r.Allow(ctx, "post:1", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = r.Allow(ctx, "post:1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease(t *testing.T) {
	t.Parallel()
	r, mr := setupRedis(t)
	limiters := map[string]interface {
		Allow(context.Context, string, time.Duration) (bool, error)
		Release(context.Context, string) error
	}{
		"memory": NewMemory(),
		"redis":  r,
	}

	for name, l := range limiters {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			key := "comment:" + name

			ok, err := l.Allow(ctx, key, time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, l.Release(ctx, key))
			ok, err = l.Allow(ctx, key, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "released key is admitted again")

			ok, err = l.Allow(ctx, key, time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, l.Release(ctx, "never-seen:"+name), "releasing an unknown key is a no-op")
		})
	}
	assert.False(t, mr.Exists("test:never-seen:redis"))
}
