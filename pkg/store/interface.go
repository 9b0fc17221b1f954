package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrLoanNotFound    = errors.New("loan not found")
	// ErrNoUnpaidInstallment means every installment of the loan is PAID (or
	// the loan has no schedule at all); the loan is fully current.
	ErrNoUnpaidInstallment = errors.New("no unpaid installment")
	// ErrNothingAccrued is returned by CapitalizeAccruedInterest when the
	// account's accrued interest is no longer positive at commit time.
	ErrNothingAccrued = errors.New("no accrued interest to capitalize")
	// ErrRunInProgress means another run of the same batch job holds the lock.
	ErrRunInProgress = errors.New("batch run already in progress")
	ErrRunNotFound   = errors.New("batch run not found")
)

// Storage defines the datastore contract consumed by the batch engines.
// Implementations must make CapitalizeAccruedInterest atomic: the journal
// insert and the account update commit together or not at all.
type Storage interface {
	// Accounts
	CreateAccount(ctx context.Context, acct *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// GetAccountsForAccrual selects ACTIVE accounts with balance > 0 and
	// interest rate > 0.
	GetAccountsForAccrual(ctx context.Context) ([]*models.Account, error)
	// GetAccountsForCapitalization selects ACTIVE accounts with accrued
	// interest > 0.
	GetAccountsForCapitalization(ctx context.Context) ([]*models.Account, error)
	// AddAccruedInterest atomically increments the account's accrued interest
	// and stamps last_accrual_date with accruedOn.
	AddAccruedInterest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, accruedOn time.Time) error
	// CapitalizeAccruedInterest moves the account's accrued interest into its
	// balance and writes the INTEREST_CREDIT journal entry, in one
	// transaction. Returns the journal entry that was written.
	CapitalizeAccruedInterest(ctx context.Context, accountID uuid.UUID, postedAt time.Time) (*models.AccountTransaction, error)
	GetTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AccountTransaction, error)

	// Loans and provisioning
	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	// GetLoansForProvisioning selects ACTIVE loans with outstanding
	// principal > 0.
	GetLoansForProvisioning(ctx context.Context) ([]*models.Loan, error)
	CreateInstallment(ctx context.Context, inst *models.LoanInstallment) error
	// GetEarliestUnpaidInstallment returns the first installment of the loan
	// with status != PAID, ordered by due date ascending.
	GetEarliestUnpaidInstallment(ctx context.Context, loanID uuid.UUID) (*models.LoanInstallment, error)
	CreateProvision(ctx context.Context, p *models.LoanProvision) error
	GetProvisionsByRun(ctx context.Context, runID uuid.UUID) ([]models.ProvisionDetail, error)
	GetProvisionsBetween(ctx context.Context, from, to time.Time) ([]models.ProvisionDetail, error)

	// Batch runs. BeginBatchRun is the run-level lock: it fails with
	// ErrRunInProgress while an open run of the same job exists.
	BeginBatchRun(ctx context.Context, jobName string, startedAt time.Time) (*models.BatchRun, error)
	CompleteBatchRun(ctx context.Context, runID uuid.UUID, processed, failed int, completedAt time.Time) error
	FailBatchRun(ctx context.Context, runID uuid.UUID, completedAt time.Time) error
	LatestCompletedRun(ctx context.Context, jobName string) (*models.BatchRun, error)
	GetRecentRuns(ctx context.Context, limit int) ([]*models.BatchRun, error)

	Close() error
}
