package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

var hundred = decimal.NewFromInt(100)

// Calculator runs the provisioning batch: grade every active loan and write
// an immutable snapshot of its provision for this run.
type Calculator struct {
	storage    store.Storage
	classifier *Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewCalculator creates a provision calculator with an injected Storage.
func NewCalculator(s store.Storage, logger *slog.Logger) *Calculator {
	return &Calculator{
		storage:    s,
		classifier: NewClassifier(s),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the calculator's time source, including the one used
// for overdue-day computation.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	c.classifier.WithClock(now)
	return c
}

// ProvisionAmount computes the reserve for a principal at a percentage,
// rounded half-up to the currency unit.
func ProvisionAmount(outstandingPrincipal, percent decimal.Decimal) decimal.Decimal {
	return outstandingPrincipal.Mul(percent).Div(hundred).Round(2)
}

// RunProvisionCalculation grades every ACTIVE loan with outstanding
// principal and inserts a new provision snapshot for each. Snapshots are
// never updated; every run is a fresh point-in-time record tagged with the
// run ID. Per-loan failures are logged by loan number and excluded from the
// processed count; only a selection or lock failure aborts the run.
func (c *Calculator) RunProvisionCalculation(ctx context.Context) (int, error) {
	start := c.now()
	run, err := c.storage.BeginBatchRun(ctx, models.JobProvisionCalculation, start)
	if err != nil {
		return 0, fmt.Errorf("starting provision run: %w", err)
	}

	loans, err := c.storage.GetLoansForProvisioning(ctx)
	if err != nil {
		if ferr := c.storage.FailBatchRun(ctx, run.ID, c.now()); ferr != nil {
			c.logger.Error("failed to mark provision run failed", "run_id", run.ID, "error", ferr)
		}
		return 0, fmt.Errorf("selecting loans for provisioning: %w", err)
	}

	processed, failed := 0, 0
	for _, loan := range loans {
		if err := c.provisionLoan(ctx, run.ID, loan, start); err != nil {
			failed++
			c.logger.Error("provisioning failed", "loan", loan.LoanNumber, "error", err)
			continue
		}
		processed++
	}

	if err := c.storage.CompleteBatchRun(ctx, run.ID, processed, failed, c.now()); err != nil {
		c.logger.Error("failed to close provision run", "run_id", run.ID, "error", err)
	}
	c.logger.Info("provision calculation complete", "processed", processed, "failed", failed)
	return processed, nil
}

func (c *Calculator) provisionLoan(ctx context.Context, runID uuid.UUID, loan *models.Loan, asOf time.Time) error {
	overdueDays, err := c.classifier.OverdueDays(ctx, loan.ID)
	if err != nil {
		return fmt.Errorf("classifying overdue days: %w", err)
	}

	classification, percent := Classify(overdueDays)
	snapshot := &models.LoanProvision{
		ID:               uuid.New(),
		LoanID:           loan.ID,
		RunID:            runID,
		Classification:   classification,
		OverdueDays:      overdueDays,
		ProvisionPercent: percent,
		ProvisionAmount:  ProvisionAmount(loan.OutstandingPrincipal, percent),
		ProvisionDate:    asOf,
	}
	if err := c.storage.CreateProvision(ctx, snapshot); err != nil {
		return fmt.Errorf("writing provision snapshot: %w", err)
	}
	return nil
}
