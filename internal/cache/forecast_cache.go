package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/redis/go-redis/v9"
)

// ForecastCache keeps the most recent forecast per item.
type ForecastCache interface {
	Get(ctx context.Context, itemID int64) (*forecast.ForecastResult, bool, error)
	Put(ctx context.Context, result *forecast.ForecastResult) error
	InvalidateAll(ctx context.Context) error
}

type memoryForecastCache struct {
	mu      sync.RWMutex
	results map[int64]*forecast.ForecastResult
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMemoryForecastCache() ForecastCache {
	return &memoryForecastCache{results: make(map[int64]*forecast.ForecastResult)}
}

func (c *memoryForecastCache) Get(ctx context.Context, itemID int64) (*forecast.ForecastResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[itemID]
	return r, ok, nil
}

func (c *memoryForecastCache) Put(ctx context.Context, result *forecast.ForecastResult) error {
	c.mu.Lock()
	c.results[result.ItemID] = result
	c.mu.Unlock()
	return nil
}

func (c *memoryForecastCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.results = make(map[int64]*forecast.ForecastResult)
	c.mu.Unlock()
	return nil
}

func (c *redisForecastCache) Get(ctx context.Context, itemID int64) (*forecast.ForecastResult, bool, error) {
	payload, err := c.client.Get(ctx, forecastKey(itemID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result forecast.ForecastResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	return &result, true, nil
}

func (c *redisForecastCache) Put(ctx context.Context, result *forecast.ForecastResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}
	if err := c.client.Set(ctx, forecastKey(result.ItemID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, keyPrefix+":forecast:", scanBatchSize)
}
