package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler runs a RetrainWorker on a fixed interval.
type Scheduler struct {
	worker   *RetrainWorker
	interval time.Duration
	onRun    func(*RetrainRun)
}

// NewScheduler creates a new Scheduler. onRun, when set, receives every finished run.
func NewScheduler(worker *RetrainWorker, interval time.Duration, onRun func(*RetrainRun)) *Scheduler {
	return &Scheduler{
		worker:   worker,
		interval: interval,
		onRun:    onRun,
	}
}

// Start blocks until ctx is cancelled, retraining every interval. A
// non-positive interval disables the schedule and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		log.Info().Msg("retrain: scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("retrain: scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retrain: scheduler stopped")
			return
		case <-ticker.C:
			run, err := s.worker.Run(ctx)
			if err != nil {
				log.Error().Err(err).Msg("retrain: scheduled run failed")
			}
			if s.onRun != nil && run != nil {
				s.onRun(run)
			}
		}
	}
}
