// Package provision implements NPL classification and loan loss provisioning:
// overdue-day grading, provision snapshot calculation, and the classification
// summary report.
package provision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

// Classification buckets over overdue days. Upper bounds are inclusive and
// the buckets are contiguous: 0-90 GOOD, 91-180 SUBSTANDARD, 181-365
// DOUBTFUL, 366+ BAD.
var (
	percentGood        = decimal.NewFromInt(1)
	percentSubstandard = decimal.NewFromInt(25)
	percentDoubtful    = decimal.NewFromInt(50)
	percentBad         = decimal.NewFromInt(100)
)

// Classify maps overdue days to a risk grade and its provisioning percentage.
func Classify(overdueDays int) (models.Classification, decimal.Decimal) {
	switch {
	case overdueDays <= 90:
		return models.ClassificationGood, percentGood
	case overdueDays <= 180:
		return models.ClassificationSubstandard, percentSubstandard
	case overdueDays <= 365:
		return models.ClassificationDoubtful, percentDoubtful
	default:
		return models.ClassificationBad, percentBad
	}
}

// OverdueDaysAt computes whole days between the due date and now, rounding
// partial days up. A due date in the future yields 0.
func OverdueDaysAt(dueDate, now time.Time) int {
	if !dueDate.Before(now) {
		return 0
	}
	elapsed := now.Sub(dueDate)
	days := int(elapsed / (24 * time.Hour))
	if elapsed%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Classifier determines how many days a loan is overdue from its earliest
// unpaid installment.
type Classifier struct {
	storage store.Storage
	now     func() time.Time
}

// NewClassifier creates a classifier with an injected Storage.
func NewClassifier(s store.Storage) *Classifier {
	return &Classifier{storage: s, now: time.Now}
}

// WithClock overrides the classifier's time source.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// OverdueDays returns the loan's overdue days. A loan with no unpaid
// installment, or whose earliest unpaid installment is not yet due, is
// current (0 days).
func (c *Classifier) OverdueDays(ctx context.Context, loanID uuid.UUID) (int, error) {
	inst, err := c.storage.GetEarliestUnpaidInstallment(ctx, loanID)
	if errors.Is(err, store.ErrNoUnpaidInstallment) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return OverdueDaysAt(inst.DueDate, c.now()), nil
}
