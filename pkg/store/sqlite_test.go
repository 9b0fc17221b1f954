package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/finbatch/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "finbatch_test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccount(t *testing.T, s *SQLiteStore, number string, balance, accrued, rate string) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:              uuid.New(),
		AccountNumber:   number,
		OwnerName:       "Owner " + number,
		Balance:         decimal.RequireFromString(balance),
		AccruedInterest: decimal.RequireFromString(accrued),
		InterestRate:    decimal.RequireFromString(rate),
		Status:          models.AccountStatusActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acct))
	return acct
}

func TestSQLiteStore_CreateAndGetAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := seedAccount(t, s, "SB-001", "2500.75", "0", "4.0")

	fetched, err := s.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.AccountNumber, fetched.AccountNumber)
	assert.True(t, fetched.Balance.Equal(acct.Balance), "balance %s", fetched.Balance)
	assert.True(t, fetched.InterestRate.Equal(acct.InterestRate))
	assert.Nil(t, fetched.LastAccrualDate)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSQLiteStore_AccrualSelectionFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eligible := seedAccount(t, s, "SB-001", "1000", "0", "4.0")
	seedAccount(t, s, "SB-002", "0", "0", "4.0")   // zero balance
	seedAccount(t, s, "SB-003", "1000", "0", "0")  // zero rate
	closed := seedAccount(t, s, "SB-004", "1000", "0", "4.0")
	_, err := s.db.Exec(`UPDATE accounts SET status = ? WHERE id = ?`, models.AccountStatusClosed, closed.ID.String())
	require.NoError(t, err)

	accounts, err := s.GetAccountsForAccrual(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, eligible.ID, accounts[0].ID)
}

func TestSQLiteStore_AddAccruedInterest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := seedAccount(t, s, "SB-001", "1000", "0.5", "4.0")
	accruedOn := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddAccruedInterest(ctx, acct.ID, decimal.RequireFromString("0.1095890410958904"), accruedOn))

	fetched, err := s.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.6095890410958904", fetched.AccruedInterest.String())
	require.NotNil(t, fetched.LastAccrualDate)
	assert.True(t, fetched.LastAccrualDate.Equal(accruedOn))

	err = s.AddAccruedInterest(ctx, uuid.New(), decimal.New(1, 0), accruedOn)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSQLiteStore_CapitalizeAccruedInterest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := seedAccount(t, s, "SB-001", "10000", "49.3150684931506849", "6.0")
	postedAt := time.Date(2026, 10, 1, 1, 30, 0, 0, time.UTC)

	entry, err := s.CapitalizeAccruedInterest(ctx, acct.ID, postedAt)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeInterestCredit, entry.Type)
	assert.Equal(t, "49.32", entry.Amount.StringFixed(2))
	assert.Equal(t, "10049.32", entry.RunningBalance.StringFixed(2))

	fetched, err := s.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Balance.Equal(entry.RunningBalance), "balance %s must match running balance", fetched.Balance)
	assert.True(t, fetched.AccruedInterest.IsZero())
	require.NotNil(t, fetched.LastInterestPostedDate)

	entries, err := s.GetTransactionsForAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].RunningBalance.Equal(fetched.Balance))

	// Nothing left to capitalize: the account is no longer selected and a
	// direct call reports ErrNothingAccrued.
	accounts, err := s.GetAccountsForCapitalization(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	_, err = s.CapitalizeAccruedInterest(ctx, acct.ID, postedAt)
	assert.ErrorIs(t, err, ErrNothingAccrued)
}

func seedLoan(t *testing.T, s *SQLiteStore, number string, principal string) *models.Loan {
	t.Helper()
	loan := &models.Loan{
		ID:                   uuid.New(),
		LoanNumber:           number,
		BorrowerName:         "Borrower " + number,
		OutstandingPrincipal: decimal.RequireFromString(principal),
		Status:               models.LoanStatusActive,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	require.NoError(t, s.CreateLoan(context.Background(), loan))
	return loan
}

func TestSQLiteStore_GetEarliestUnpaidInstallment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loan := seedLoan(t, s, "LN-001", "100000")

	_, err := s.GetEarliestUnpaidInstallment(ctx, loan.ID)
	assert.ErrorIs(t, err, ErrNoUnpaidInstallment)

	base := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	mkInst := func(due time.Time, status string) {
		require.NoError(t, s.CreateInstallment(ctx, &models.LoanInstallment{
			ID:      uuid.New(),
			LoanID:  loan.ID,
			DueDate: due,
			Amount:  decimal.NewFromInt(5000),
			Status:  status,
		}))
	}
	mkInst(base, models.InstallmentStatusPaid)
	mkInst(base.AddDate(0, 1, 0), models.InstallmentStatusOverdue)
	mkInst(base.AddDate(0, 2, 0), models.InstallmentStatusPending)

	inst, err := s.GetEarliestUnpaidInstallment(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, inst.DueDate.Equal(base.AddDate(0, 1, 0)), "got %s", inst.DueDate)
	assert.Equal(t, models.InstallmentStatusOverdue, inst.Status)
}

func TestSQLiteStore_ProvisionsByRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loan := seedLoan(t, s, "LN-001", "100000")
	runA := uuid.New()
	runB := uuid.New()

	mkProvision := func(runID uuid.UUID, date time.Time, amount string) {
		require.NoError(t, s.CreateProvision(ctx, &models.LoanProvision{
			ID:               uuid.New(),
			LoanID:           loan.ID,
			RunID:            runID,
			Classification:   models.ClassificationDoubtful,
			OverdueDays:      200,
			ProvisionPercent: decimal.NewFromInt(50),
			ProvisionAmount:  decimal.RequireFromString(amount),
			ProvisionDate:    date,
		}))
	}
	dateA := time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC)
	dateB := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	mkProvision(runA, dateA, "50000")
	mkProvision(runB, dateB, "52000")

	details, err := s.GetProvisionsByRun(ctx, runB)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, loan.LoanNumber, details[0].LoanNumber)
	assert.Equal(t, loan.BorrowerName, details[0].BorrowerName)
	assert.True(t, details[0].OutstandingPrincipal.Equal(loan.OutstandingPrincipal))
	assert.True(t, details[0].ProvisionAmount.Equal(decimal.NewFromInt(52000)))

	between, err := s.GetProvisionsBetween(ctx, dateA.AddDate(0, 0, -1), dateA.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, between, 1)
	assert.True(t, between[0].ProvisionAmount.Equal(decimal.NewFromInt(50000)))
}

func TestSQLiteStore_BatchRunLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC)
	run, err := s.BeginBatchRun(ctx, models.JobDailyAccrual, started)
	require.NoError(t, err)

	// Second run of the same job is refused while the first is open.
	_, err = s.BeginBatchRun(ctx, models.JobDailyAccrual, started.Add(time.Minute))
	assert.ErrorIs(t, err, ErrRunInProgress)

	// A different job is unaffected.
	other, err := s.BeginBatchRun(ctx, models.JobProvisionCalculation, started)
	require.NoError(t, err)
	require.NoError(t, s.CompleteBatchRun(ctx, other.ID, 0, 0, started.Add(time.Minute)))

	require.NoError(t, s.CompleteBatchRun(ctx, run.ID, 10, 1, started.Add(2*time.Minute)))

	// Lock released after completion.
	again, err := s.BeginBatchRun(ctx, models.JobDailyAccrual, started.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.FailBatchRun(ctx, again.ID, started.Add(2*time.Hour)))

	latest, err := s.LatestCompletedRun(ctx, models.JobDailyAccrual)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID, "failed runs must not count as latest completed")
	assert.Equal(t, 10, latest.ProcessedCount)
	assert.Equal(t, 1, latest.ErrorCount)

	runs, err := s.GetRecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
