package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

// Reporter aggregates provision snapshots into the classification summary.
// It is read-only. The "latest run" is identified by the run ID of the most
// recent completed provisioning batch, not by a time-window heuristic, so
// back-to-back or long-spaced runs report correctly.
type Reporter struct {
	storage store.Storage
	now     func() time.Time
}

// NewReporter creates a report aggregator with an injected Storage.
func NewReporter(s store.Storage) *Reporter {
	return &Reporter{storage: s, now: time.Now}
}

// WithClock overrides the reporter's time source.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// GetProvisionSummary reports on the snapshots of the latest completed
// provisioning run. If no run has completed yet, the report is empty rather
// than an error.
func (r *Reporter) GetProvisionSummary(ctx context.Context) (*models.ProvisionReport, error) {
	run, err := r.storage.LatestCompletedRun(ctx, models.JobProvisionCalculation)
	if errors.Is(err, store.ErrRunNotFound) {
		return r.buildReport(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest provision run: %w", err)
	}

	details, err := r.storage.GetProvisionsByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("reading provisions for run %s: %w", run.ID, err)
	}
	return r.buildReport(&run.ID, details), nil
}

// GetProvisionSummaryForRange reports on snapshots dated within [from, to],
// for callers that want an explicit reporting window instead of the latest
// run.
func (r *Reporter) GetProvisionSummaryForRange(ctx context.Context, from, to time.Time) (*models.ProvisionReport, error) {
	details, err := r.storage.GetProvisionsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("reading provisions between %s and %s: %w", from, to, err)
	}
	return r.buildReport(nil, details), nil
}

func (r *Reporter) buildReport(runID *uuid.UUID, details []models.ProvisionDetail) *models.ProvisionReport {
	buckets := make(map[models.Classification]*models.ProvisionBucketSummary, len(models.Classifications))
	summary := make([]models.ProvisionBucketSummary, len(models.Classifications))
	for i, class := range models.Classifications {
		summary[i] = models.ProvisionBucketSummary{
			Classification: class,
			TotalExposure:  decimal.Zero,
			TotalProvision: decimal.Zero,
		}
		buckets[class] = &summary[i]
	}

	total := decimal.Zero
	for _, d := range details {
		b, ok := buckets[d.Classification]
		if !ok {
			continue
		}
		b.LoanCount++
		b.TotalExposure = b.TotalExposure.Add(d.OutstandingPrincipal)
		b.TotalProvision = b.TotalProvision.Add(d.ProvisionAmount)
		total = total.Add(d.ProvisionAmount)
	}

	report := &models.ProvisionReport{
		GeneratedAt:    r.now(),
		Summary:        summary,
		TotalProvision: total,
		Details:        details,
	}
	if runID != nil {
		id := *runID
		report.RunID = &id
	}
	return report
}
