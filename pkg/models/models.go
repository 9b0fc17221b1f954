package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account statuses. Only ACTIVE accounts participate in interest batches.
const (
	AccountStatusActive  = "ACTIVE"
	AccountStatusDormant = "DORMANT"
	AccountStatusClosed  = "CLOSED"
)

type Account struct {
	ID              uuid.UUID       `json:"id"`
	AccountNumber   string          `json:"account_number"`
	OwnerName       string          `json:"owner_name"`
	Balance         decimal.Decimal `json:"balance"`
	AccruedInterest decimal.Decimal `json:"accrued_interest"` // Running total since the last capitalization
	InterestRate    decimal.Decimal `json:"interest_rate"`    // Annual percentage, e.g. 4.0 for 4% p.a.
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	// LastAccrualDate guards against accruing twice on the same calendar day.
	LastAccrualDate        *time.Time `json:"last_accrual_date,omitempty"`
	LastInterestPostedDate *time.Time `json:"last_interest_posted_date,omitempty"`
}

type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal     TransactionType = "WITHDRAWAL"
	TransactionTypeInterestCredit TransactionType = "INTEREST_CREDIT"
)

// AccountTransaction is an append-only ledger entry. RunningBalance is the
// account balance immediately after this entry was applied.
type AccountTransaction struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       uuid.UUID       `json:"account_id"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
	TransactionDate time.Time       `json:"transaction_date"`
}

// Loan statuses. The batch engine reads loans but never mutates them;
// provisioning is derived state stored separately.
const (
	LoanStatusActive     = "ACTIVE"
	LoanStatusDefaulted  = "DEFAULTED"
	LoanStatusClosed     = "CLOSED"
	LoanStatusWrittenOff = "WRITTEN_OFF"
)

type Loan struct {
	ID                   uuid.UUID       `json:"id"`
	LoanNumber           string          `json:"loan_number"`
	BorrowerName         string          `json:"borrower_name"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	Status               string          `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

const (
	InstallmentStatusPending = "PENDING"
	InstallmentStatusPaid    = "PAID"
	InstallmentStatusOverdue = "OVERDUE"
)

type LoanInstallment struct {
	ID      uuid.UUID       `json:"id"`
	LoanID  uuid.UUID       `json:"loan_id"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
}

// Classification is the NPL risk grade assigned from overdue days.
type Classification string

const (
	ClassificationGood        Classification = "GOOD"
	ClassificationSubstandard Classification = "SUBSTANDARD"
	ClassificationDoubtful    Classification = "DOUBTFUL"
	ClassificationBad         Classification = "BAD"
)

// Classifications lists all grades in bucket order, for report aggregation.
var Classifications = []Classification{
	ClassificationGood,
	ClassificationSubstandard,
	ClassificationDoubtful,
	ClassificationBad,
}

// LoanProvision is an immutable point-in-time snapshot of a loan's risk
// grade and reserved provision. One row per loan per calculation run;
// history is never overwritten.
type LoanProvision struct {
	ID               uuid.UUID       `json:"id"`
	LoanID           uuid.UUID       `json:"loan_id"`
	RunID            uuid.UUID       `json:"run_id"`
	Classification   Classification  `json:"classification"`
	OverdueDays      int             `json:"overdue_days"`
	ProvisionPercent decimal.Decimal `json:"provision_percent"`
	ProvisionAmount  decimal.Decimal `json:"provision_amount"`
	ProvisionDate    time.Time       `json:"provision_date"`
}

// Batch job names, used as the run-lock key and the batch_runs audit key.
const (
	JobDailyAccrual            = "daily-accrual"
	JobQuarterlyCapitalization = "quarterly-capitalization"
	JobProvisionCalculation    = "provision-calculation"
)

const (
	BatchRunStatusRunning   = "RUNNING"
	BatchRunStatusCompleted = "COMPLETED"
	BatchRunStatusFailed    = "FAILED"
)

// BatchRun records one execution of a batch job. An open (RUNNING) row acts
// as the mutual-exclusion watermark: a job cannot start while another run of
// the same job is still open.
type BatchRun struct {
	ID             uuid.UUID  `json:"id"`
	JobName        string     `json:"job_name"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ProcessedCount int        `json:"processed_count"`
	ErrorCount     int        `json:"error_count"`
}

// ProvisionDetail is one drill-down row of the provision report: the snapshot
// joined with its loan.
type ProvisionDetail struct {
	LoanNumber           string          `json:"loan_number"`
	BorrowerName         string          `json:"borrower_name"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	Classification       Classification  `json:"classification"`
	OverdueDays          int             `json:"overdue_days"`
	ProvisionPercent     decimal.Decimal `json:"provision_percent"`
	ProvisionAmount      decimal.Decimal `json:"provision_amount"`
	ProvisionDate        time.Time       `json:"provision_date"`
}

// ProvisionBucketSummary aggregates one classification bucket.
type ProvisionBucketSummary struct {
	Classification Classification  `json:"classification"`
	LoanCount      int             `json:"loan_count"`
	TotalExposure  decimal.Decimal `json:"total_exposure"`
	TotalProvision decimal.Decimal `json:"total_provision"`
}

// ProvisionReport is the classification summary plus underlying detail rows.
type ProvisionReport struct {
	RunID          *uuid.UUID               `json:"run_id,omitempty"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Summary        []ProvisionBucketSummary `json:"summary"`
	TotalProvision decimal.Decimal          `json:"total_provision"`
	Details        []ProvisionDetail        `json:"details"`
}
