package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/andresuchdata/reorder-ai/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RetrainWorker retrains every item's model on a bounded worker pool
type RetrainWorker struct {
	items   repository.ItemRepository
	trainer ItemTrainer
	archive ModelArchiver
	config  RetrainConfig
	mu      sync.Mutex
}

// NewRetrainWorker creates a new retrain worker. archive may be nil.
func NewRetrainWorker(items repository.ItemRepository, trainer ItemTrainer, archive ModelArchiver, config RetrainConfig) *RetrainWorker {
	return &RetrainWorker{
		items:   items,
		trainer: trainer,
		archive: archive,
		config:  config,
	}
}

// Run retrains the given items, or every item when none are given. Per-item
// failures are tallied in the run; the error covers only listing failures and
// cancellation.
func (w *RetrainWorker) Run(ctx context.Context, itemIDs ...int64) (*RetrainRun, error) {
	run := &RetrainRun{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		StartedAt: time.Now(),
	}

	var (
		items []domain.Item
		err   error
	)
	if len(itemIDs) > 0 {
		items, err = w.items.ListByIDs(ctx, itemIDs)
	} else {
		items, err = w.items.List(ctx)
	}
	if err != nil {
		w.finish(run, StatusFailed, err)
		return run, fmt.Errorf("failed to list items: %w", err)
	}

	run.TotalItems = len(items)
	for _, id := range missingIDs(itemIDs, items) {
		run.TotalItems++
		w.record(run, id, OutcomeMissing, fmt.Errorf("item %d: %w", id, domain.ErrEntityNotFound))
	}
	if run.Missing > 0 {
		log.Warn().Str("run_id", run.ID).Int("missing", run.Missing).Msg("retrain: requested items not found")
	}

	run.Status = StatusProcessing
	log.Info().Str("run_id", run.ID).Int("items", run.TotalItems).Msg("retrain: starting run")

	if err := w.processItemsParallel(ctx, run, items); err != nil {
		w.finish(run, StatusFailed, err)
		return run, err
	}

	w.finish(run, StatusCompleted, nil)
	log.Info().
		Str("run_id", run.ID).
		Int("trained", run.Trained).
		Int("insufficient", run.Insufficient).
		Int("failed", run.Failed).
		Int("archived", run.Archived).
		Int("missing", run.Missing).
		Dur("took", run.CompletedAt.Sub(run.StartedAt)).
		Msg("retrain: run completed")

	return run, nil
}

// processItemsParallel trains items using a worker pool
func (w *RetrainWorker) processItemsParallel(ctx context.Context, run *RetrainRun, items []domain.Item) error {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	jobChan := make(chan domain.Item, len(items))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobChan {
				w.processItem(ctx, run, item, workerID)
			}
		}(i)
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			close(jobChan)
			wg.Wait()
			return ctx.Err()
		case jobChan <- item:
		}
	}
	close(jobChan)

	wg.Wait()
	return ctx.Err()
}

func (w *RetrainWorker) processItem(ctx context.Context, run *RetrainRun, item domain.Item, workerID int) {
	attempts := w.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		trained, trainErr := w.trainer.TrainItem(ctx, item)
		if trainErr == nil {
			w.record(run, item.ID, OutcomeTrained, nil)
			w.archiveModel(ctx, run, trained)
			return
		}
		err = trainErr

		// only unexpected failures can succeed on a later attempt
		if domain.FailureKindOf(err) != domain.FailureUnexpected || attempt == attempts {
			break
		}
		log.Warn().Err(err).
			Int64("item_id", item.ID).
			Int("worker", workerID).
			Int("attempt", attempt).
			Msg("retrain: retrying item")

		select {
		case <-ctx.Done():
			w.record(run, item.ID, OutcomeFailed, ctx.Err())
			return
		case <-time.After(w.config.RetryBackoff):
		}
	}

	if domain.FailureKindOf(err) == domain.FailureInsufficientData {
		w.record(run, item.ID, OutcomeInsufficient, err)
		return
	}
	log.Error().Err(err).Int64("item_id", item.ID).Int("worker", workerID).Msg("retrain: item failed")
	w.record(run, item.ID, OutcomeFailed, err)
}

func (w *RetrainWorker) archiveModel(ctx context.Context, run *RetrainRun, model *forecast.TrainedModel) {
	if w.archive == nil || model == nil {
		return
	}
	if err := w.archive.Save(ctx, model); err != nil {
		log.Warn().Err(err).Int64("item_id", model.ItemID).Msg("retrain: archive failed")
		return
	}
	w.mu.Lock()
	run.Archived++
	w.mu.Unlock()
}

func (w *RetrainWorker) record(run *RetrainRun, itemID int64, outcome ItemOutcome, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch outcome {
	case OutcomeTrained:
		run.Trained++
		return
	case OutcomeInsufficient:
		run.Insufficient++
	case OutcomeMissing:
		run.Missing++
	default:
		run.Failed++
	}
	if err != nil {
		run.Failures = append(run.Failures, ItemFailure{
			ItemID: itemID,
			Kind:   domain.FailureKindOf(err),
			Error:  err.Error(),
		})
	}
}

// missingIDs returns the requested ids the repository did not return, once each
// and in request order
func missingIDs(requested []int64, found []domain.Item) []int64 {
	seen := make(map[int64]bool, len(requested)+len(found))
	for _, it := range found {
		seen[it.ID] = true
	}
	var missing []int64
	for _, id := range requested {
		if seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	return missing
}

func (w *RetrainWorker) finish(run *RetrainRun, status RunStatus, err error) {
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	if err != nil {
		run.ErrorMessage = err.Error()
	}
}
