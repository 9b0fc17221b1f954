package provision

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store/storetest"
)

func TestGetProvisionSummary_EmptyWithoutRuns(t *testing.T) {
	mem := storetest.New()
	reporter := NewReporter(mem)

	report, err := reporter.GetProvisionSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report.RunID)
	assert.Empty(t, report.Details)
	assert.True(t, report.TotalProvision.IsZero())

	// All four buckets are present even when empty.
	require.Len(t, report.Summary, 4)
	for i, class := range models.Classifications {
		assert.Equal(t, class, report.Summary[i].Classification)
		assert.Zero(t, report.Summary[i].LoanCount)
	}
}

func TestGetProvisionSummary_AggregatesLatestRunOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)

	mem := storetest.New()
	calc := NewCalculator(mem, testLogger()).WithClock(func() time.Time { return now })
	reporter := NewReporter(mem)

	good := newLoan("LN-001", 50000)
	doubtful := newLoan("LN-002", 100000)
	bad := newLoan("LN-003", 40000)
	require.NoError(t, mem.CreateLoan(ctx, good))
	require.NoError(t, mem.CreateLoan(ctx, doubtful))
	require.NoError(t, mem.CreateLoan(ctx, bad))
	addUnpaidInstallment(t, mem, doubtful.ID, now.AddDate(0, 0, -200))
	addUnpaidInstallment(t, mem, bad.ID, now.AddDate(0, 0, -400))

	// An older run one month back must not leak into the latest report,
	// even though a 24h lookback would equally miss it and a longer one
	// would double-count it.
	older := now.AddDate(0, -1, 0)
	calc.WithClock(func() time.Time { return older })
	_, err := calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)

	calc.WithClock(func() time.Time { return now })
	_, err = calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)

	report, err := reporter.GetProvisionSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.RunID)
	require.Len(t, report.Details, 3)

	byClass := make(map[models.Classification]models.ProvisionBucketSummary)
	for _, b := range report.Summary {
		byClass[b.Classification] = b
	}

	assert.Equal(t, 1, byClass[models.ClassificationGood].LoanCount)
	assert.True(t, byClass[models.ClassificationGood].TotalExposure.Equal(decimal.NewFromInt(50000)))
	assert.True(t, byClass[models.ClassificationGood].TotalProvision.Equal(decimal.NewFromInt(500)))

	assert.Equal(t, 1, byClass[models.ClassificationDoubtful].LoanCount)
	assert.True(t, byClass[models.ClassificationDoubtful].TotalProvision.Equal(decimal.NewFromInt(50000)))

	assert.Equal(t, 1, byClass[models.ClassificationBad].LoanCount)
	assert.True(t, byClass[models.ClassificationBad].TotalProvision.Equal(decimal.NewFromInt(40000)))

	assert.Zero(t, byClass[models.ClassificationSubstandard].LoanCount)

	// 500 + 50000 + 40000
	assert.True(t, report.TotalProvision.Equal(decimal.NewFromInt(90500)), "got %s", report.TotalProvision)
}

func TestGetProvisionSummaryForRange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)

	mem := storetest.New()
	calc := NewCalculator(mem, testLogger())
	reporter := NewReporter(mem)

	loan := newLoan("LN-001", 100000)
	require.NoError(t, mem.CreateLoan(ctx, loan))

	older := now.AddDate(0, -2, 0)
	calc.WithClock(func() time.Time { return older })
	_, err := calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)

	calc.WithClock(func() time.Time { return now })
	_, err = calc.RunProvisionCalculation(ctx)
	require.NoError(t, err)

	// A window around the older run sees only that snapshot.
	report, err := reporter.GetProvisionSummaryForRange(ctx, older.AddDate(0, 0, -1), older.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, report.Details, 1)
	assert.Equal(t, older, report.Details[0].ProvisionDate)
}
