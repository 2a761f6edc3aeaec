package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func fittedModel(t *testing.T, itemID int64) *forecast.TrainedModel {
	t.Helper()
	var events []domain.SaleEvent
	for i := 0; i < 40; i++ {
		events = append(events, domain.SaleEvent{
			ItemID:           itemID,
			Quantity:         1 + i%4,
			Timestamp:        storeNow.AddDate(0, 0, -i),
			PaymentConfirmed: true,
		})
	}
	model, err := forecast.Train(itemID, events, storeNow, forecast.DefaultConfig())
	require.NoError(t, err)
	return model
}

func TestRedisModelStore_ComputeIfAbsentStoresOnce(t *testing.T) {
	mr, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, 2*time.Second)
	ctx := context.Background()
	model := fittedModel(t, 7)

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (*forecast.TrainedModel, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return model, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := store.ComputeIfAbsent(ctx, 7, compute)
			assert.NoError(t, err)
			if assert.NotNil(t, m) {
				assert.Equal(t, int64(7), m.ItemID)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists(modelKey(7)))
	assert.Equal(t, time.Hour, mr.TTL(modelKey(7)))
	assert.False(t, mr.Exists(modelLockKey(7)), "lock released after training")

	cached, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.Regression, cached.Regression)

	// a later caller is served from redis
	_, err = store.ComputeIfAbsent(ctx, 7, func(context.Context) (*forecast.TrainedModel, error) {
		t.Fatal("compute called on a cached model")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestRedisModelStore_FailuresAreNotStored(t *testing.T) {
	mr, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.ComputeIfAbsent(ctx, 1, func(context.Context) (*forecast.TrainedModel, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(modelKey(1)))
	assert.False(t, mr.Exists(modelLockKey(1)))

	m, err := store.ComputeIfAbsent(ctx, 1, func(context.Context) (*forecast.TrainedModel, error) {
		return fittedModel(t, 1), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ItemID)
	assert.True(t, mr.Exists(modelKey(1)))
}

func TestRedisModelStore_LockHeldElsewhere(t *testing.T) {
	_, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, 0)
	ctx := context.Background()

	held, err := redislock.New(client).Obtain(ctx, modelLockKey(5), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	var calls int32
	_, err = store.ComputeIfAbsent(ctx, 5, func(context.Context) (*forecast.TrainedModel, error) {
		atomic.AddInt32(&calls, 1)
		return fittedModel(t, 5), nil
	})
	assert.ErrorIs(t, err, ErrModelLockBusy)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRedisModelStore_RechecksAfterWaitingForLock(t *testing.T) {
	_, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, 2*time.Second)
	ctx := context.Background()
	model := fittedModel(t, 9)

	held, err := redislock.New(client).Obtain(ctx, modelLockKey(9), time.Minute, nil)
	require.NoError(t, err)

	// another process finishes training while this one waits on the lock
	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, newRedisModelStore(client, time.Hour, time.Minute, 0).Put(ctx, model))
		assert.NoError(t, held.Release(ctx))
	}()

	var calls int32
	m, err := store.ComputeIfAbsent(ctx, 9, func(context.Context) (*forecast.TrainedModel, error) {
		atomic.AddInt32(&calls, 1)
		return model, nil
	})
	<-done

	require.NoError(t, err)
	assert.Equal(t, int64(9), m.ItemID)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestRedisModelStore_MalformedEntryIsAMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, time.Second)
	ctx := context.Background()

	require.NoError(t, mr.Set(modelKey(3), `{"item_id":3,"features":["day_of_week"],"regression":{"coefficients":[1,2,3]}}`))
	_, ok, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set(modelKey(4), "{not json"))
	_, ok, err = store.Get(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	// the next training replaces the broken entry
	m, err := store.ComputeIfAbsent(ctx, 3, func(context.Context) (*forecast.TrainedModel, error) {
		return fittedModel(t, 3), nil
	})
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cached, ok, err := store.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Regression.Coefficients, len(forecast.FeatureNames))
}

func TestRedisModelStore_InvalidateAll(t *testing.T) {
	mr, client := newTestRedis(t)
	store := newRedisModelStore(client, time.Hour, time.Minute, time.Second)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, fittedModel(t, 1)))
	require.NoError(t, store.Put(ctx, fittedModel(t, 2)))
	require.NoError(t, mr.Set(forecastKey(1), "{}"))

	require.NoError(t, store.InvalidateAll(ctx))

	assert.False(t, mr.Exists(modelKey(1)))
	assert.False(t, mr.Exists(modelKey(2)))
	assert.True(t, mr.Exists(forecastKey(1)), "forecast entries are left alone")
}
