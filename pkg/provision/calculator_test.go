package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store/storetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoan(number string, principal int64) *models.Loan {
	return &models.Loan{
		ID:                   uuid.New(),
		LoanNumber:           number,
		BorrowerName:         "Borrower " + number,
		OutstandingPrincipal: decimal.NewFromInt(principal),
		Status:               models.LoanStatusActive,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
}

func addUnpaidInstallment(t *testing.T, mem *storetest.MemStore, loanID uuid.UUID, dueDate time.Time) {
	t.Helper()
	require.NoError(t, mem.CreateInstallment(context.Background(), &models.LoanInstallment{
		ID:      uuid.New(),
		LoanID:  loanID,
		DueDate: dueDate,
		Status:  models.InstallmentStatusOverdue,
	}))
}

func TestProvisionAmount(t *testing.T) {
	amount := ProvisionAmount(decimal.NewFromInt(100000), decimal.NewFromInt(50))
	assert.True(t, amount.Equal(decimal.NewFromInt(50000)), "got %s", amount)

	// Rounds half-up to the currency unit.
	amount = ProvisionAmount(decimal.NewFromFloat(33333.33), decimal.NewFromInt(25))
	assert.Equal(t, "8333.33", amount.StringFixed(2))
}

func TestRunProvisionCalculation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)

	mem := storetest.New()
	calc := NewCalculator(mem, testLogger()).WithClock(func() time.Time { return now })

	// 200 days overdue at 100000 principal: DOUBTFUL, 50%, 50000 reserve.
	doubtful := newLoan("LN-001", 100000)
	require.NoError(t, mem.CreateLoan(ctx, doubtful))
	addUnpaidInstallment(t, mem, doubtful.ID, now.AddDate(0, 0, -200))

	// Fully current loan: GOOD, 1%.
	good := newLoan("LN-002", 50000)
	require.NoError(t, mem.CreateLoan(ctx, good))

	// Closed loan must not be graded.
	closed := newLoan("LN-003", 70000)
	closed.Status = models.LoanStatusClosed
	require.NoError(t, mem.CreateLoan(ctx, closed))

	processed, err := calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	require.Len(t, mem.Provisions, 2)

	byLoan := make(map[uuid.UUID]*models.LoanProvision)
	for _, p := range mem.Provisions {
		byLoan[p.LoanID] = p
	}

	p := byLoan[doubtful.ID]
	require.NotNil(t, p)
	assert.Equal(t, models.ClassificationDoubtful, p.Classification)
	assert.Equal(t, 200, p.OverdueDays)
	assert.True(t, p.ProvisionPercent.Equal(decimal.NewFromInt(50)))
	assert.True(t, p.ProvisionAmount.Equal(decimal.NewFromInt(50000)), "got %s", p.ProvisionAmount)
	assert.Equal(t, now, p.ProvisionDate)

	p = byLoan[good.ID]
	require.NotNil(t, p)
	assert.Equal(t, models.ClassificationGood, p.Classification)
	assert.Equal(t, 0, p.OverdueDays)
	assert.True(t, p.ProvisionAmount.Equal(decimal.NewFromInt(500)), "got %s", p.ProvisionAmount)
}

func TestRunProvisionCalculation_SnapshotsAccumulate(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	calc := NewCalculator(mem, testLogger())

	loan := newLoan("LN-001", 100000)
	require.NoError(t, mem.CreateLoan(ctx, loan))

	_, err := calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)
	_, err = calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)

	// Every run writes a fresh snapshot; history is never overwritten.
	require.Len(t, mem.Provisions, 2)
	assert.NotEqual(t, mem.Provisions[0].RunID, mem.Provisions[1].RunID)
	assert.NotEqual(t, mem.Provisions[0].ID, mem.Provisions[1].ID)
}

func TestRunProvisionCalculation_PartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	calc := NewCalculator(mem, testLogger())

	good := newLoan("LN-001", 100000)
	bad := newLoan("LN-002", 200000)
	require.NoError(t, mem.CreateLoan(ctx, good))
	require.NoError(t, mem.CreateLoan(ctx, bad))
	mem.FailLoans[bad.ID] = fmt.Errorf("simulated insert failure")

	processed, err := calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.Len(t, mem.Provisions, 1)
	assert.Equal(t, good.ID, mem.Provisions[0].LoanID)

	require.Len(t, mem.Runs, 1)
	assert.Equal(t, 1, mem.Runs[0].ProcessedCount)
	assert.Equal(t, 1, mem.Runs[0].ErrorCount)
}

func TestRunProvisionCalculation_SelectionFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	mem := storetest.New()
	calc := NewCalculator(mem, testLogger())
	mem.SelectionErr = fmt.Errorf("datastore unreachable")

	_, err := calc.RunProvisionCalculation(ctx)
	require.Error(t, err)
	require.Len(t, mem.Runs, 1)
	assert.Equal(t, models.BatchRunStatusFailed, mem.Runs[0].Status)
}
