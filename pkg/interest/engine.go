// Package interest implements the daily accrual and quarterly capitalization
// batch engines over savings-style accounts.
package interest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

var (
	daysInYear = decimal.NewFromInt(365)
	hundred    = decimal.NewFromInt(100)
)

// DefaultUnitTimeout bounds each per-account datastore round-trip so one hung
// call cannot wedge the whole batch.
const DefaultUnitTimeout = 10 * time.Second

// BatchError records one account that failed inside a run without aborting it.
type BatchError struct {
	AccountID     uuid.UUID `json:"account_id"`
	AccountNumber string    `json:"account_number"`
	Err           error     `json:"-"`
	Message       string    `json:"message"`
}

func (e BatchError) Error() string {
	return fmt.Sprintf("account %s: %v", e.AccountNumber, e.Err)
}

func newBatchError(acct *models.Account, err error) BatchError {
	return BatchError{
		AccountID:     acct.ID,
		AccountNumber: acct.AccountNumber,
		Err:           err,
		Message:       fmt.Sprintf("account %s: %v", acct.AccountNumber, err),
	}
}

// Engine runs the interest batches against a Storage.
type Engine struct {
	storage     store.Storage
	logger      *slog.Logger
	unitTimeout time.Duration
	now         func() time.Time
}

// NewEngine creates an interest engine with an injected Storage.
func NewEngine(s store.Storage, logger *slog.Logger) *Engine {
	return &Engine{
		storage:     s,
		logger:      logger,
		unitTimeout: DefaultUnitTimeout,
		now:         time.Now,
	}
}

// WithClock overrides the engine's time source. Used by tests to replay days.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// DailyInterest computes one day of interest on a balance at an annual
// percentage rate: balance * rate / (365 * 100). The result keeps full
// decimal precision; rounding to the currency unit happens when the interest
// is realized at capitalization, so the running total never drifts.
func DailyInterest(balance, annualRatePercent decimal.Decimal) decimal.Decimal {
	return balance.Mul(annualRatePercent).Div(daysInYear.Mul(hundred))
}

// RunDailyAccrual accrues one day of interest on every eligible account and
// returns the number of accounts accrued. Accounts already accrued today are
// skipped, so a duplicate trigger on the same day is harmless. Per-account
// write failures are logged and skipped; only a selection or lock failure
// aborts the run.
func (e *Engine) RunDailyAccrual(ctx context.Context) (int, error) {
	start := e.now()
	run, err := e.storage.BeginBatchRun(ctx, models.JobDailyAccrual, start)
	if err != nil {
		return 0, fmt.Errorf("starting daily accrual run: %w", err)
	}

	accounts, err := e.storage.GetAccountsForAccrual(ctx)
	if err != nil {
		e.failRun(ctx, run.ID)
		return 0, fmt.Errorf("selecting accounts for accrual: %w", err)
	}

	today := start.UTC().Truncate(24 * time.Hour)
	processed, failed := 0, 0
	for _, acct := range accounts {
		if acct.LastAccrualDate != nil && acct.LastAccrualDate.UTC().Truncate(24*time.Hour).Equal(today) {
			e.logger.Debug("interest already accrued today, skipping", "account", acct.AccountNumber)
			continue
		}

		daily := DailyInterest(acct.Balance, acct.InterestRate)
		if !daily.IsPositive() {
			continue
		}

		if err := e.addAccrued(ctx, acct.ID, daily, today); err != nil {
			failed++
			e.logger.Error("daily accrual failed", "account", acct.AccountNumber, "error", err)
			continue
		}
		processed++
	}

	if err := e.storage.CompleteBatchRun(ctx, run.ID, processed, failed, e.now()); err != nil {
		e.logger.Error("failed to close daily accrual run", "run_id", run.ID, "error", err)
	}
	e.logger.Info("daily accrual complete", "processed", processed, "failed", failed)
	return processed, nil
}

func (e *Engine) addAccrued(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, accruedOn time.Time) error {
	unitCtx, cancel := context.WithTimeout(ctx, e.unitTimeout)
	defer cancel()
	return e.storage.AddAccruedInterest(unitCtx, accountID, amount, accruedOn)
}

// RunQuarterlyCapitalization moves accrued interest into the balance of every
// eligible account. Each account is capitalized in its own datastore
// transaction: the INTEREST_CREDIT journal entry and the balance update
// commit together or not at all. Failed accounts are collected and reported;
// the run never aborts for one bad account. The returned error is non-nil
// only when the run itself could not proceed.
func (e *Engine) RunQuarterlyCapitalization(ctx context.Context) (int, []BatchError, error) {
	start := e.now()
	run, err := e.storage.BeginBatchRun(ctx, models.JobQuarterlyCapitalization, start)
	if err != nil {
		return 0, nil, fmt.Errorf("starting capitalization run: %w", err)
	}

	accounts, err := e.storage.GetAccountsForCapitalization(ctx)
	if err != nil {
		e.failRun(ctx, run.ID)
		return 0, nil, fmt.Errorf("selecting accounts for capitalization: %w", err)
	}

	processed := 0
	var batchErrs []BatchError
	for _, acct := range accounts {
		entry, err := e.capitalize(ctx, acct.ID, start)
		if errors.Is(err, store.ErrNothingAccrued) {
			// Raced with another writer that already zeroed the accrual;
			// nothing to post, not a failure.
			continue
		}
		if err != nil {
			batchErrs = append(batchErrs, newBatchError(acct, err))
			e.logger.Error("capitalization failed", "account", acct.AccountNumber, "error", err)
			continue
		}
		processed++
		e.logger.Info("capitalized accrued interest",
			"account", acct.AccountNumber,
			"amount", entry.Amount.StringFixed(2),
			"running_balance", entry.RunningBalance.StringFixed(2))
	}

	if err := e.storage.CompleteBatchRun(ctx, run.ID, processed, len(batchErrs), e.now()); err != nil {
		e.logger.Error("failed to close capitalization run", "run_id", run.ID, "error", err)
	}
	e.logger.Info("quarterly capitalization complete", "processed", processed, "failed", len(batchErrs))
	return processed, batchErrs, nil
}

func (e *Engine) capitalize(ctx context.Context, accountID uuid.UUID, postedAt time.Time) (*models.AccountTransaction, error) {
	unitCtx, cancel := context.WithTimeout(ctx, e.unitTimeout)
	defer cancel()
	return e.storage.CapitalizeAccruedInterest(unitCtx, accountID, postedAt)
}

func (e *Engine) failRun(ctx context.Context, runID uuid.UUID) {
	if err := e.storage.FailBatchRun(ctx, runID, e.now()); err != nil {
		e.logger.Error("failed to mark batch run failed", "run_id", runID, "error", err)
	}
}
