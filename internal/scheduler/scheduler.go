// Package scheduler drives recurring agreement execution in-process: a ticker
// selects due agreements and runs them one at a time. Multiple instances are
// safe because execution takes a row lock and re-checks due status.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"nationsim/internal/services"
)

type AgreementRunner interface {
	Execute(ctx context.Context, agreementID int64) (services.ExecuteOutcome, error)
}

type DueLister interface {
	ListDueIDs(ctx context.Context) ([]int64, error)
}

type Scheduler struct {
	agreements DueLister
	runner     AgreementRunner
	interval   time.Duration
	logger     *slog.Logger
}

func New(agreements DueLister, runner AgreementRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		agreements: agreements,
		runner:     runner,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, ticking once per interval. One tick's
// failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick executes every currently due agreement.
func (s *Scheduler) Tick(ctx context.Context) {
	ids, err := s.agreements.ListDueIDs(ctx)
	if err != nil {
		s.logger.Error("scheduler_list_due_failed", slog.String("error", err.Error()))
		return
	}
	for _, id := range ids {
		outcome, err := s.runner.Execute(ctx, id)
		if err != nil {
			s.logger.Error("scheduler_execute_failed",
				slog.Int64("agreement_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if outcome.Paused {
			s.logger.Warn("scheduler_agreement_paused",
				slog.Int64("agreement_id", id),
				slog.String("reason", outcome.Reason),
			)
		}
	}
}
