package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
)

// ItemTrainer fits and stores a model for one item
type ItemTrainer interface {
	TrainItem(ctx context.Context, item domain.Item) (*forecast.TrainedModel, error)
}

// ModelArchiver persists trained models outside the model store
type ModelArchiver interface {
	Save(ctx context.Context, model *forecast.TrainedModel) error
}

// RetrainConfig holds configuration for a retrain worker
type RetrainConfig struct {
	WorkerCount   int           // Number of concurrent trainers
	RetryAttempts int           // Attempts per item on unexpected failures
	RetryBackoff  time.Duration // Backoff between attempts
}

// DefaultRetrainConfig returns sensible defaults
func DefaultRetrainConfig() RetrainConfig {
	return RetrainConfig{
		WorkerCount:   4,
		RetryAttempts: 2,
		RetryBackoff:  time.Second,
	}
}

// RunStatus represents the current state of a retrain run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// ItemOutcome is the result of retraining a single item
type ItemOutcome string

const (
	OutcomeTrained      ItemOutcome = "trained"
	OutcomeInsufficient ItemOutcome = "insufficient_data"
	OutcomeFailed       ItemOutcome = "failed"
	OutcomeMissing      ItemOutcome = "missing"
)

// ItemFailure records why an item could not be retrained
type ItemFailure struct {
	ItemID int64              `json:"item_id"`
	Kind   domain.FailureKind `json:"kind"`
	Error  string             `json:"error"`
}

// RetrainRun tracks a single execution over the item catalogue
type RetrainRun struct {
	ID           string        `json:"id"`
	Status       RunStatus     `json:"status"`
	TotalItems   int           `json:"total_items"`
	Trained      int           `json:"trained"`
	Insufficient int           `json:"insufficient"`
	Failed       int           `json:"failed"`
	Archived     int           `json:"archived"`
	Missing      int           `json:"missing"`
	Failures     []ItemFailure `json:"failures,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}
