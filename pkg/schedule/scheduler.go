// Package schedule wires the batch engines to an in-process cron scheduler.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/corebank/finbatch/pkg/config"
	"github.com/corebank/finbatch/pkg/interest"
	"github.com/corebank/finbatch/pkg/provision"
	"github.com/corebank/finbatch/pkg/store"
)

// Jobs holds the cron entry points over the engines.
type Jobs struct {
	interest   *interest.Engine
	provisions *provision.Calculator
	logger     *slog.Logger
	runTimeout time.Duration
}

// NewJobs creates the job runner.
func NewJobs(interestEngine *interest.Engine, calc *provision.Calculator, logger *slog.Logger, runTimeout time.Duration) *Jobs {
	return &Jobs{
		interest:   interestEngine,
		provisions: calc,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// RunDailyAccrual is the scheduled entry point for the daily interest batch.
func (j *Jobs) RunDailyAccrual() {
	j.logger.Info("starting scheduled daily accrual")
	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	processed, err := j.interest.RunDailyAccrual(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunInProgress) {
			j.logger.Warn("daily accrual already running, skipping tick")
			return
		}
		j.logger.Error("scheduled daily accrual failed", "error", err)
		return
	}
	j.logger.Info("scheduled daily accrual finished", "processed", processed)
}

// RunQuarterlyCapitalization is the scheduled entry point for the quarterly
// interest capitalization batch.
func (j *Jobs) RunQuarterlyCapitalization() {
	j.logger.Info("starting scheduled quarterly capitalization")
	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	processed, batchErrs, err := j.interest.RunQuarterlyCapitalization(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunInProgress) {
			j.logger.Warn("capitalization already running, skipping tick")
			return
		}
		j.logger.Error("scheduled capitalization failed", "error", err)
		return
	}
	j.logger.Info("scheduled capitalization finished", "processed", processed, "failed", len(batchErrs))
}

// RunProvisionCalculation is the scheduled entry point for the loan loss
// provisioning batch.
func (j *Jobs) RunProvisionCalculation() {
	j.logger.Info("starting scheduled provision calculation")
	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	processed, err := j.provisions.RunProvisionCalculation(ctx)
	if err != nil {
		if errors.Is(err, store.ErrRunInProgress) {
			j.logger.Warn("provision calculation already running, skipping tick")
			return
		}
		j.logger.Error("scheduled provision calculation failed", "error", err)
		return
	}
	j.logger.Info("scheduled provision calculation finished", "processed", processed)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.DailyAccrualSchedule, s.jobs.RunDailyAccrual); err != nil {
		s.logger.Error("failed to schedule daily accrual job", "error", err)
	} else {
		s.logger.Info("scheduled daily accrual job", "schedule", s.config.DailyAccrualSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.CapitalizationSchedule, s.jobs.RunQuarterlyCapitalization); err != nil {
		s.logger.Error("failed to schedule capitalization job", "error", err)
	} else {
		s.logger.Info("scheduled capitalization job", "schedule", s.config.CapitalizationSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.ProvisionSchedule, s.jobs.RunProvisionCalculation); err != nil {
		s.logger.Error("failed to schedule provision job", "error", err)
	} else {
		s.logger.Info("scheduled provision job", "schedule", s.config.ProvisionSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
