package cache

import (
	"context"
	"strconv"
	"sync"

	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a model when the store has none for an item.
type ComputeFunc func(ctx context.Context) (*forecast.TrainedModel, error)

// ModelStore keeps the latest trained model per item.
//
// ComputeIfAbsent runs compute at most once per item among concurrent callers
// and never stores a failed result.
type ModelStore interface {
	Get(ctx context.Context, itemID int64) (*forecast.TrainedModel, bool, error)
	Put(ctx context.Context, model *forecast.TrainedModel) error
	ComputeIfAbsent(ctx context.Context, itemID int64, compute ComputeFunc) (*forecast.TrainedModel, error)
	InvalidateAll(ctx context.Context) error
}

type memoryModelStore struct {
	mu     sync.RWMutex
	models map[int64]*forecast.TrainedModel
	group  singleflight.Group
}

func NewMemoryModelStore() ModelStore {
	return &memoryModelStore{models: make(map[int64]*forecast.TrainedModel)}
}

func (s *memoryModelStore) Get(ctx context.Context, itemID int64) (*forecast.TrainedModel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[itemID]
	return m, ok, nil
}

func (s *memoryModelStore) Put(ctx context.Context, model *forecast.TrainedModel) error {
	s.mu.Lock()
	s.models[model.ItemID] = model
	s.mu.Unlock()
	return nil
}

func (s *memoryModelStore) ComputeIfAbsent(ctx context.Context, itemID int64, compute ComputeFunc) (*forecast.TrainedModel, error) {
	if m, ok, _ := s.Get(ctx, itemID); ok {
		return m, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(itemID, 10), func() (interface{}, error) {
		if m, ok, _ := s.Get(ctx, itemID); ok {
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

func (s *memoryModelStore) InvalidateAll(ctx context.Context) error {
	s.mu.Lock()
	s.models = make(map[int64]*forecast.TrainedModel)
	s.mu.Unlock()
	return nil
}
