package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/cache"
	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/andresuchdata/reorder-ai/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	MaxHorizonDays   = 365
	defaultFanOut    = 4
	defaultAlertTopN = 5
)

type ForecastService struct {
	items       repository.ItemRepository
	sales       repository.SalesRepository
	models      cache.ModelStore
	forecasts   cache.ForecastCache
	cfg         forecast.Config
	trainOnMiss bool
	fanOut      int
	now         func() time.Time
}

type Option func(*ForecastService)

// WithClock overrides the wall clock used to anchor history windows
func WithClock(now func() time.Time) Option {
	return func(s *ForecastService) { s.now = now }
}

// WithTrainOnMiss controls whether a forecast without a cached model trains inline
func WithTrainOnMiss(enabled bool) Option {
	return func(s *ForecastService) { s.trainOnMiss = enabled }
}

// WithFanOut bounds how many items are evaluated concurrently when ranking
func WithFanOut(n int) Option {
	return func(s *ForecastService) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

func NewForecastService(
	items repository.ItemRepository,
	sales repository.SalesRepository,
	stores *cache.Stores,
	cfg forecast.Config,
	opts ...Option,
) *ForecastService {
	if stores == nil {
		stores = cache.NewMemoryStores()
	}
	s := &ForecastService{
		items:       items,
		sales:       sales,
		models:      stores.Models,
		forecasts:   stores.Forecasts,
		cfg:         cfg,
		trainOnMiss: true,
		fanOut:      defaultFanOut,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.WindowDays <= 0 {
		s.cfg.WindowDays = forecast.DefaultConfig().WindowDays
	}
	if s.cfg.DefaultHorizonDays <= 0 {
		s.cfg.DefaultHorizonDays = forecast.DefaultConfig().DefaultHorizonDays
	}
	return s
}

// Train fits and stores a fresh model for the item. Data and fit problems are
// reported in the result; the error is reserved for missing items and
// infrastructure failures.
func (s *ForecastService) Train(ctx context.Context, itemID int64) (forecast.TrainingResult, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return forecast.TrainingResult{}, err
	}

	model, err := s.TrainItem(ctx, *item)
	if kind := domain.FailureKindOf(err); kind == domain.FailureUnexpected || kind == domain.FailureNotFound {
		return forecast.TrainingResult{}, err
	}
	return forecast.NewTrainingResult(itemID, model, err), nil
}

// TrainItem fits a model for an already loaded item and overwrites the stored one.
func (s *ForecastService) TrainItem(ctx context.Context, item domain.Item) (*forecast.TrainedModel, error) {
	model, err := s.fit(ctx, item)
	if err != nil {
		log.Debug().Err(err).Int64("item_id", item.ID).Msg("forecast: training failed")
		return nil, err
	}

	if err := s.models.Put(ctx, model); err != nil {
		return nil, fmt.Errorf("store model for item %d: %w", item.ID, err)
	}

	log.Info().
		Int64("item_id", item.ID).
		Float64("accuracy", model.Metrics.Accuracy).
		Float64("mae", model.Metrics.MAE).
		Int("training_samples", model.Metrics.TrainingSamples).
		Msg("forecast: model trained")

	return model, nil
}

// Forecast projects demand for the next horizon days, training on a cache
// miss when allowed. A non-positive horizon uses the configured default.
func (s *ForecastService) Forecast(ctx context.Context, itemID int64, horizon int) (*forecast.ForecastResult, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if horizon <= 0 {
		horizon = s.cfg.DefaultHorizonDays
	}
	if horizon > MaxHorizonDays {
		return nil, forecast.ErrInvalidHorizon
	}
	return s.forecastItem(ctx, *item, horizon)
}

// Recommend always yields a decision for an existing item; forecast failures
// degrade to the reorder-level fallback with the failure kind recorded.
func (s *ForecastService) Recommend(ctx context.Context, itemID int64) (domain.ReorderRecommendation, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return domain.ReorderRecommendation{}, err
	}
	return s.recommendItem(ctx, *item), nil
}

// RankRecommendations evaluates every item and returns those needing a
// reorder, most urgent first.
func (s *ForecastService) RankRecommendations(ctx context.Context) ([]domain.Suggestion, error) {
	all, err := s.evaluateAll(ctx)
	if err != nil {
		return nil, err
	}
	return forecast.Rank(all), nil
}

// AlertSummary counts current reorder alerts
func (s *ForecastService) AlertSummary(ctx context.Context, topN int) (domain.AlertSummary, error) {
	all, err := s.evaluateAll(ctx)
	if err != nil {
		return domain.AlertSummary{}, err
	}
	if topN <= 0 {
		topN = defaultAlertTopN
	}
	return forecast.SummarizeAlerts(all, topN), nil
}

// ModelInfo returns the stored model's metadata. It never trains.
func (s *ForecastService) ModelInfo(ctx context.Context, itemID int64) (*forecast.ModelInfo, bool, error) {
	model, ok, err := s.models.Get(ctx, itemID)
	if err != nil || !ok {
		return nil, false, err
	}
	info := model.Info()
	return &info, true, nil
}

// CachedForecast returns the last forecast computed for the item, if any
func (s *ForecastService) CachedForecast(ctx context.Context, itemID int64) (*forecast.ForecastResult, bool, error) {
	return s.forecasts.Get(ctx, itemID)
}

// WarmModel installs a model produced elsewhere, such as an archived snapshot
func (s *ForecastService) WarmModel(ctx context.Context, model *forecast.TrainedModel) error {
	if model == nil {
		return nil
	}
	return s.models.Put(ctx, model)
}

func (s *ForecastService) fit(ctx context.Context, item domain.Item) (*forecast.TrainedModel, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(s.cfg.WindowDays - 1))

	events, err := s.sales.ListConfirmedSales(ctx, item.ID, from, now)
	if err != nil {
		return nil, fmt.Errorf("load sales history: %w", err)
	}

	return forecast.Train(item.ID, events, now, s.cfg)
}

func (s *ForecastService) model(ctx context.Context, item domain.Item) (*forecast.TrainedModel, error) {
	if !s.trainOnMiss {
		model, ok, err := s.models.Get(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrModelNotTrained
		}
		return model, nil
	}

	return s.models.ComputeIfAbsent(ctx, item.ID, func(ctx context.Context) (*forecast.TrainedModel, error) {
		log.Debug().Int64("item_id", item.ID).Msg("forecast: no cached model, training")
		return s.fit(ctx, item)
	})
}

func (s *ForecastService) forecastItem(ctx context.Context, item domain.Item, horizon int) (*forecast.ForecastResult, error) {
	model, err := s.model(ctx, item)
	if err != nil {
		return nil, err
	}

	result, err := forecast.Project(model, s.now(), horizon)
	if err != nil {
		return nil, err
	}

	if err := s.forecasts.Put(ctx, result); err != nil {
		log.Warn().Err(err).Int64("item_id", item.ID).Msg("forecast: cache put failed")
	}
	return result, nil
}

func (s *ForecastService) recommendItem(ctx context.Context, item domain.Item) domain.ReorderRecommendation {
	fc, err := s.forecastItem(ctx, item, item.EffectiveLeadTime())
	rec := forecast.Recommend(item, fc, err, s.cfg.Policy)

	if err != nil {
		ev := log.Debug()
		if rec.FallbackKind == domain.FailureUnexpected {
			ev = log.Warn()
		}
		ev.Err(err).
			Int64("item_id", item.ID).
			Str("fallback", string(rec.FallbackKind)).
			Msg("forecast: using reorder-level fallback")
	}
	return rec
}

func (s *ForecastService) evaluateAll(ctx context.Context) ([]domain.Suggestion, error) {
	items, err := s.items.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Suggestion, len(items))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.fanOut
	if workers > len(items) {
		workers = len(items)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = domain.Suggestion{
					Item:           items[i],
					Recommendation: s.recommendItem(ctx, items[i]),
				}
			}
		}()
	}

	for i := range items {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return out, nil
}
