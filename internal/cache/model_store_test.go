package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/config"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryModelStore_ComputeIfAbsentRunsOnce(t *testing.T) {
	store := NewMemoryModelStore()
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (*forecast.TrainedModel, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &forecast.TrainedModel{ItemID: 7}, nil
	}

	var wg sync.WaitGroup
	results := make([]*forecast.TrainedModel, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := store.ComputeIfAbsent(ctx, 7, compute)
			assert.NoError(t, err)
			results[i] = m
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, m := range results {
		require.NotNil(t, m)
		assert.Same(t, results[0], m)
	}

	cached, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, results[0], cached)
}

func TestMemoryModelStore_FailuresAreNotCached(t *testing.T) {
	store := NewMemoryModelStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.ComputeIfAbsent(ctx, 1, func(context.Context) (*forecast.TrainedModel, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, _ := store.Get(ctx, 1)
	assert.False(t, ok)

	m, err := store.ComputeIfAbsent(ctx, 1, func(context.Context) (*forecast.TrainedModel, error) {
		return &forecast.TrainedModel{ItemID: 1, WindowDays: 90}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 90, m.WindowDays)
}

func TestMemoryModelStore_PutOverwritesAndInvalidate(t *testing.T) {
	store := NewMemoryModelStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &forecast.TrainedModel{ItemID: 3, WindowDays: 30}))
	require.NoError(t, store.Put(ctx, &forecast.TrainedModel{ItemID: 3, WindowDays: 60}))

	m, ok, err := store.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, m.WindowDays)

	require.NoError(t, store.InvalidateAll(ctx))
	_, ok, _ = store.Get(ctx, 3)
	assert.False(t, ok)
}

func TestMemoryForecastCache(t *testing.T) {
	c := NewMemoryForecastCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, &forecast.ForecastResult{ItemID: 5, Summary: forecast.Summary{HorizonDays: 7}}))
	r, ok, err := c.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, r.Summary.HorizonDays)
}

func TestNewStores_DisabledUsesMemory(t *testing.T) {
	stores, err := NewStores(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	assert.IsType(t, &memoryModelStore{}, stores.Models)
	assert.IsType(t, &memoryForecastCache{}, stores.Forecasts)
	assert.NoError(t, stores.Close())
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisPassword: "pw", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://cache.internal:6380/1"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "reorder:model:42", modelKey(42))
	assert.Equal(t, "reorder:lock:model:42", modelLockKey(42))
	assert.Equal(t, "reorder:forecast:42", forecastKey(42))
}

func TestRedisModelStore_LockRetries(t *testing.T) {
	s := &redisModelStore{lockWait: 2 * time.Second}
	assert.Equal(t, 10, s.lockRetries())

	s.lockWait = 0
	assert.Equal(t, 1, s.lockRetries())
}
