package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rates struct {
	TonUSD float64 `json:"ton_usd"`
	UsdRUB float64 `json:"usd_rub"`
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func implementations(t *testing.T) map[string]Cache {
	r, _ := setupRedis(t)
	return map[string]Cache{"redis": r, "memory": NewMemory()}
}

func TestSetAndGet(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := rates{TonUSD: 5.5, UsdRUB: 92}
			require.NoError(t, c.Set(ctx, RatesKey, want, time.Minute))

			var got rates
			found, err := c.Get(ctx, RatesKey, &got)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, want, got)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			var out rates
			found, err := c.Get(context.Background(), "no_such_key", &out)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestInvalidate(t *testing.T) {
	for name, c := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Set(ctx, "key", "value", time.Minute))
			require.NoError(t, c.Invalidate(ctx, "key"))

			var out string
			found, err := c.Get(ctx, "key", &out)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestRedisExpiry(t *testing.T) {
	c, mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, RatesKey, rates{TonUSD: 1}, time.Minute))

	mr.FastForward(2 * time.Minute)

	var out rates
	found, err := c.Get(ctx, RatesKey, &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, RatesKey, rates{TonUSD: 1}, time.Minute))

	now = now.Add(59 * time.Second)
	var out rates
	found, _ := m.Get(ctx, RatesKey, &out)
	assert.True(t, found)

	now = now.Add(time.Second)
	found, _ = m.Get(ctx, RatesKey, &out)
	assert.False(t, found)
}

func TestRedisInvalidJSON(t *testing.T) {
	c, _ := setupRedis(t)
	require.NoError(t, c.Db.Set(context.Background(), "bad", []byte("not-json"), time.Minute).Err())

	var out rates
	found, err := c.Get(context.Background(), "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestNewRedisInvalidAddr(t *testing.T) {
	c, err := NewRedis(context.Background(), "redis://127.0.0.1:1/0")
	assert.Nil(t, c)
	assert.Error(t, err)

	_, err = NewRedis(context.Background(), "::not a url")
	assert.Error(t, err)
}
