package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const lockRetryInterval = 200 * time.Millisecond

// ErrModelLockBusy is returned when another process holds the training lock
// for longer than the configured wait.
var ErrModelLockBusy = errors.New("model training lock busy")

type redisModelStore struct {
	client   *redis.Client
	locker   *redislock.Client
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
	group    singleflight.Group
}

func newRedisModelStore(client *redis.Client, ttl, lockTTL, lockWait time.Duration) *redisModelStore {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &redisModelStore{
		client:   client,
		locker:   redislock.New(client),
		ttl:      ttl,
		lockTTL:  lockTTL,
		lockWait: lockWait,
	}
}

func (s *redisModelStore) Get(ctx context.Context, itemID int64) (*forecast.TrainedModel, bool, error) {
	payload, err := s.client.Get(ctx, modelKey(itemID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	// an entry that cannot serve forecasts counts as a miss and is overwritten
	// by the next training
	var model forecast.TrainedModel
	if err := json.Unmarshal(payload, &model); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("model store: ignoring undecodable entry")
		return nil, false, nil
	}
	if err := model.Validate(); err != nil {
		log.Warn().Err(err).Int64("item_id", itemID).Msg("model store: ignoring malformed entry")
		return nil, false, nil
	}
	return &model, true, nil
}

func (s *redisModelStore) Put(ctx context.Context, model *forecast.TrainedModel) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode model cache: %w", err)
	}
	if err := s.client.Set(ctx, modelKey(model.ItemID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// ComputeIfAbsent deduplicates in-process callers with singleflight and
// other processes with a per-item redis lock.
func (s *redisModelStore) ComputeIfAbsent(ctx context.Context, itemID int64, compute ComputeFunc) (*forecast.TrainedModel, error) {
	if m, ok, err := s.Get(ctx, itemID); err != nil {
		return nil, err
	} else if ok {
		return m, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(itemID, 10), func() (interface{}, error) {
		lock, err := s.locker.Obtain(ctx, modelLockKey(itemID), s.lockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), s.lockRetries()),
		})
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, fmt.Errorf("item %d: %w", itemID, ErrModelLockBusy)
		}
		if err != nil {
			return nil, fmt.Errorf("obtain model lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				log.Warn().Err(err).Int64("item_id", itemID).Msg("model store: release lock failed")
			}
		}()

		// another process may have trained while we waited
		if m, ok, err := s.Get(ctx, itemID); err != nil {
			return nil, err
		} else if ok {
			return m, nil
		}

		m, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Put(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*forecast.TrainedModel), nil
}

func (s *redisModelStore) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, s.client, keyPrefix+":model:", scanBatchSize)
}

func (s *redisModelStore) lockRetries() int {
	n := int(s.lockWait / lockRetryInterval)
	if n < 1 {
		n = 1
	}
	return n
}
