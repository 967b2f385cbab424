package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/cleancut/internal/config"
)

type testStruct struct {
	Name    string
	Credits int64
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestInitServer_Unreachable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Name: "acc-1", Credits: 30}
	require.NoError(t, cache.Set(ctx, "ledger:acc-1", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "ledger:acc-1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestSetExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	var out string
	found, err := cache.Get(ctx, "short", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSeenAndRemember(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "webhook:paddle:evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.Remember(ctx, "webhook:paddle:evt_1", time.Hour))

	seen, err = cache.Seen(ctx, "webhook:paddle:evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	other, err := cache.Seen(ctx, "webhook:paddle:evt_2")
	require.NoError(t, err)
	assert.False(t, other)

	mr.FastForward(2 * time.Hour)
	seen, err = cache.Seen(ctx, "webhook:paddle:evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRemember_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	err := cache.Remember(context.Background(), "webhook:paddle:evt_3", time.Hour)
	require.Error(t, err)

	_, err = cache.Seen(context.Background(), "webhook:paddle:evt_3")
	require.Error(t, err)
}

func TestSetIfGeneration(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()
	type ledger struct {
		Credits int64 `json:"credits"`
	}

	gen, err := cache.Generation(ctx, "ledger:acc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	stored, err := cache.SetIfGeneration(ctx, "ledger:acc", ledger{Credits: 30}, time.Minute, gen)
	require.NoError(t, err)
	assert.True(t, stored)

	var got ledger
	found, err := cache.Get(ctx, "ledger:acc", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(30), got.Credits)
}

func TestSetIfGeneration_InvalidatedAfterRead(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	// Чтение поколения, затем запись в хранилище с инвалидацией, затем
	// попытка положить в кэш уже устаревшее значение.
	gen, err := cache.Generation(ctx, "ledger:acc")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "ledger:acc"))

	stored, err := cache.SetIfGeneration(ctx, "ledger:acc", map[string]int64{"credits": 30}, time.Minute, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	var got map[string]int64
	found, err := cache.Get(ctx, "ledger:acc", &got)
	require.NoError(t, err)
	assert.False(t, found)

	next, err := cache.Generation(ctx, "ledger:acc")
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	stored, err = cache.SetIfGeneration(ctx, "ledger:acc", map[string]int64{"credits": 1030}, time.Minute, next)
	require.NoError(t, err)
	assert.True(t, stored)
}
