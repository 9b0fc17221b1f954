package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
)

// PostgresStore is the production Storage implementation, backed by a pgx
// connection pool. Run-level locking uses a transaction-scoped advisory lock
// keyed by job name, so two service instances cannot start the same batch
// concurrently.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the database and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStore{db: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Info("postgres store ready")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		owner_name TEXT NOT NULL,
		balance NUMERIC(18,2) NOT NULL,
		accrued_interest NUMERIC(18,8) NOT NULL DEFAULT 0,
		interest_rate NUMERIC(8,4) NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_accrual_date TIMESTAMPTZ,
		last_interest_posted_date TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS account_transactions (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		running_balance NUMERIC(18,2) NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		loan_number TEXT NOT NULL UNIQUE,
		borrower_name TEXT NOT NULL,
		outstanding_principal NUMERIC(18,2) NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_installments (
		id UUID PRIMARY KEY,
		loan_id UUID NOT NULL REFERENCES loans(id),
		due_date TIMESTAMPTZ NOT NULL,
		amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_provisions (
		id UUID PRIMARY KEY,
		loan_id UUID NOT NULL REFERENCES loans(id),
		run_id UUID NOT NULL,
		classification TEXT NOT NULL,
		overdue_days INT NOT NULL,
		provision_percent NUMERIC(8,4) NOT NULL,
		provision_amount NUMERIC(18,2) NOT NULL,
		provision_date TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS batch_runs (
		id UUID PRIMARY KEY,
		job_name TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		processed_count INT NOT NULL DEFAULT 0,
		error_count INT NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_installments_loan_due ON loan_installments(loan_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_provisions_run ON loan_provisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_batch_runs_job ON batch_runs(job_name, status);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

const pgAccountColumns = `id, account_number, owner_name, balance::text, accrued_interest::text, interest_rate::text, status, created_at, updated_at, last_accrual_date, last_interest_posted_date`

// CreateAccount inserts a new account.
func (s *PostgresStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO accounts (id, account_number, owner_name, balance, accrued_interest, interest_rate, status, created_at, updated_at, last_accrual_date, last_interest_posted_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		acct.ID, acct.AccountNumber, acct.OwnerName, acct.Balance.String(), acct.AccruedInterest.String(),
		acct.InterestRate.String(), acct.Status, acct.CreatedAt, acct.UpdatedAt, acct.LastAccrualDate, acct.LastInterestPostedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its ID.
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+pgAccountColumns+` FROM accounts WHERE id = $1`, id)
	acct, err := scanPgAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// GetAccountsForAccrual selects the accounts eligible for daily accrual.
func (s *PostgresStore) GetAccountsForAccrual(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgAccountColumns+` FROM accounts WHERE status = $1 AND balance > 0 AND interest_rate > 0`,
		models.AccountStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts for accrual: %w", err)
	}
	defer rows.Close()
	return scanPgAccounts(rows)
}

// GetAccountsForCapitalization selects the accounts with interest waiting to
// be capitalized.
func (s *PostgresStore) GetAccountsForCapitalization(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgAccountColumns+` FROM accounts WHERE status = $1 AND accrued_interest > 0`,
		models.AccountStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts for capitalization: %w", err)
	}
	defer rows.Close()
	return scanPgAccounts(rows)
}

// AddAccruedInterest increments the accrued interest in a single statement.
func (s *PostgresStore) AddAccruedInterest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, accruedOn time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts
		 SET accrued_interest = accrued_interest + $1::numeric, last_accrual_date = $2, updated_at = NOW()
		 WHERE id = $3`,
		amount.String(), accruedOn, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update accrued interest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CapitalizeAccruedInterest posts the accrued interest to the balance. The
// account row is locked FOR UPDATE so a concurrent run cannot read the same
// accrued value; journal insert and balance update commit together.
func (s *PostgresStore) CapitalizeAccruedInterest(ctx context.Context, accountID uuid.UUID, postedAt time.Time) (*models.AccountTransaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balanceStr, accruedStr string
	err = tx.QueryRow(ctx,
		`SELECT balance::text, accrued_interest::text FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&balanceStr, &accruedStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balanceStr, err)
	}
	accrued, err := decimal.NewFromString(accruedStr)
	if err != nil {
		return nil, fmt.Errorf("invalid accrued interest %q: %w", accruedStr, err)
	}

	amount := accrued.Round(2)
	if !amount.IsPositive() {
		return nil, ErrNothingAccrued
	}
	newBalance := balance.Add(amount)

	entry := &models.AccountTransaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		Type:            models.TransactionTypeInterestCredit,
		Amount:          amount,
		Description:     "Quarterly interest capitalization",
		RunningBalance:  newBalance,
		TransactionDate: postedAt,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO account_transactions (id, account_id, type, amount, description, running_balance, transaction_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.Type, entry.Amount.String(), entry.Description, entry.RunningBalance.String(), entry.TransactionDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert interest credit entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET balance = $1, accrued_interest = 0, last_interest_posted_date = $2, updated_at = $2 WHERE id = $3`,
		newBalance.String(), postedAt, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit capitalization: %w", err)
	}
	return entry, nil
}

// GetTransactionsForAccount retrieves the ledger entries of an account, oldest first.
func (s *PostgresStore) GetTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AccountTransaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, account_id, type, amount::text, description, running_balance::text, transaction_date
		 FROM account_transactions WHERE account_id = $1 ORDER BY transaction_date ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*models.AccountTransaction
	for rows.Next() {
		var entry models.AccountTransaction
		var amountStr, runningStr string
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Type, &amountStr, &entry.Description, &runningStr, &entry.TransactionDate); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		if entry.RunningBalance, err = decimal.NewFromString(runningStr); err != nil {
			return nil, fmt.Errorf("invalid running balance %q: %w", runningStr, err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CreateLoan inserts a new loan.
func (s *PostgresStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO loans (id, loan_number, borrower_name, outstanding_principal, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		loan.ID, loan.LoanNumber, loan.BorrowerName, loan.OutstandingPrincipal.String(), loan.Status, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *PostgresStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, loan_number, borrower_name, outstanding_principal::text, status, created_at, updated_at FROM loans WHERE id = $1`,
		id,
	)
	loan, err := scanPgLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// GetLoansForProvisioning selects the loans eligible for provisioning.
func (s *PostgresStore) GetLoansForProvisioning(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, loan_number, borrower_name, outstanding_principal::text, status, created_at, updated_at
		 FROM loans WHERE status = $1 AND outstanding_principal > 0`,
		models.LoanStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select loans for provisioning: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanPgLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// CreateInstallment inserts a loan installment.
func (s *PostgresStore) CreateInstallment(ctx context.Context, inst *models.LoanInstallment) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO loan_installments (id, loan_id, due_date, amount, status) VALUES ($1, $2, $3, $4, $5)`,
		inst.ID, inst.LoanID, inst.DueDate, inst.Amount.String(), inst.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

// GetEarliestUnpaidInstallment finds the first installment of the loan that
// is not PAID, by due date ascending.
func (s *PostgresStore) GetEarliestUnpaidInstallment(ctx context.Context, loanID uuid.UUID) (*models.LoanInstallment, error) {
	var inst models.LoanInstallment
	var amountStr string
	err := s.db.QueryRow(ctx,
		`SELECT id, loan_id, due_date, amount::text, status FROM loan_installments
		 WHERE loan_id = $1 AND status != $2 ORDER BY due_date ASC LIMIT 1`,
		loanID, models.InstallmentStatusPaid,
	).Scan(&inst.ID, &inst.LoanID, &inst.DueDate, &amountStr, &inst.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoUnpaidInstallment
		}
		return nil, fmt.Errorf("failed to get earliest unpaid installment: %w", err)
	}
	if inst.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("invalid installment amount %q: %w", amountStr, err)
	}
	return &inst, nil
}

// CreateProvision inserts an immutable provision snapshot.
func (s *PostgresStore) CreateProvision(ctx context.Context, p *models.LoanProvision) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO loan_provisions (id, loan_id, run_id, classification, overdue_days, provision_percent, provision_amount, provision_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.LoanID, p.RunID, p.Classification, p.OverdueDays, p.ProvisionPercent.String(), p.ProvisionAmount.String(), p.ProvisionDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create provision: %w", err)
	}
	return nil
}

const pgProvisionDetailQuery = `
	SELECT l.loan_number, l.borrower_name, l.outstanding_principal::text,
	       p.classification, p.overdue_days, p.provision_percent::text, p.provision_amount::text, p.provision_date
	FROM loan_provisions p
	JOIN loans l ON l.id = p.loan_id`

// GetProvisionsByRun returns the snapshots of one calculation run.
func (s *PostgresStore) GetProvisionsByRun(ctx context.Context, runID uuid.UUID) ([]models.ProvisionDetail, error) {
	rows, err := s.db.Query(ctx, pgProvisionDetailQuery+` WHERE p.run_id = $1 ORDER BY l.loan_number ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provisions for run %s: %w", runID, err)
	}
	defer rows.Close()
	return scanPgProvisionDetails(rows)
}

// GetProvisionsBetween returns snapshots whose provision date falls in [from, to].
func (s *PostgresStore) GetProvisionsBetween(ctx context.Context, from, to time.Time) ([]models.ProvisionDetail, error) {
	rows, err := s.db.Query(ctx,
		pgProvisionDetailQuery+` WHERE p.provision_date >= $1 AND p.provision_date <= $2 ORDER BY l.loan_number ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get provisions between %s and %s: %w", from, to, err)
	}
	defer rows.Close()
	return scanPgProvisionDetails(rows)
}

// BeginBatchRun opens a batch run record if no run of the same job is open.
// A transaction-scoped advisory lock on the job name serializes the
// check-and-insert across service instances.
func (s *PostgresStore) BeginBatchRun(ctx context.Context, jobName string, startedAt time.Time) (*models.BatchRun, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, jobName); err != nil {
		return nil, fmt.Errorf("failed to take job lock: %w", err)
	}

	var open int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM batch_runs WHERE job_name = $1 AND status = $2`,
		jobName, models.BatchRunStatusRunning,
	).Scan(&open)
	if err != nil {
		return nil, fmt.Errorf("failed to check for open runs: %w", err)
	}
	if open > 0 {
		return nil, ErrRunInProgress
	}

	run := &models.BatchRun{
		ID:        uuid.New(),
		JobName:   jobName,
		Status:    models.BatchRunStatusRunning,
		StartedAt: startedAt,
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO batch_runs (id, job_name, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.JobName, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert batch run: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch run: %w", err)
	}
	return run, nil
}

// CompleteBatchRun closes a run with its counters.
func (s *PostgresStore) CompleteBatchRun(ctx context.Context, runID uuid.UUID, processed, failed int, completedAt time.Time) error {
	return s.closeBatchRun(ctx, runID, models.BatchRunStatusCompleted, processed, failed, completedAt)
}

// FailBatchRun closes a run that could not finish.
func (s *PostgresStore) FailBatchRun(ctx context.Context, runID uuid.UUID, completedAt time.Time) error {
	return s.closeBatchRun(ctx, runID, models.BatchRunStatusFailed, 0, 0, completedAt)
}

func (s *PostgresStore) closeBatchRun(ctx context.Context, runID uuid.UUID, status string, processed, failed int, completedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE batch_runs SET status = $1, processed_count = $2, error_count = $3, completed_at = $4 WHERE id = $5`,
		status, processed, failed, completedAt, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to close batch run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// LatestCompletedRun returns the newest COMPLETED run of a job.
func (s *PostgresStore) LatestCompletedRun(ctx context.Context, jobName string) (*models.BatchRun, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, job_name, status, started_at, completed_at, processed_count, error_count
		 FROM batch_runs WHERE job_name = $1 AND status = $2 ORDER BY started_at DESC LIMIT 1`,
		jobName, models.BatchRunStatusCompleted,
	)
	run, err := scanPgBatchRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest completed run: %w", err)
	}
	return run, nil
}

// GetRecentRuns returns the newest runs across all jobs.
func (s *PostgresStore) GetRecentRuns(ctx context.Context, limit int) ([]*models.BatchRun, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_name, status, started_at, completed_at, processed_count, error_count
		 FROM batch_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BatchRun
	for rows.Next() {
		run, err := scanPgBatchRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type pgRowScanner interface {
	Scan(dest ...any) error
}

func scanPgAccount(row pgRowScanner) (*models.Account, error) {
	var acct models.Account
	var balanceStr, accruedStr, rateStr string
	var lastAccrual, lastPosted *time.Time
	err := row.Scan(&acct.ID, &acct.AccountNumber, &acct.OwnerName, &balanceStr, &accruedStr,
		&rateStr, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt, &lastAccrual, &lastPosted)
	if err != nil {
		return nil, err
	}
	if acct.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balanceStr, err)
	}
	if acct.AccruedInterest, err = decimal.NewFromString(accruedStr); err != nil {
		return nil, fmt.Errorf("invalid accrued interest %q: %w", accruedStr, err)
	}
	if acct.InterestRate, err = decimal.NewFromString(rateStr); err != nil {
		return nil, fmt.Errorf("invalid interest rate %q: %w", rateStr, err)
	}
	acct.LastAccrualDate = lastAccrual
	acct.LastInterestPostedDate = lastPosted
	return &acct, nil
}

func scanPgAccounts(rows pgx.Rows) ([]*models.Account, error) {
	var accounts []*models.Account
	for rows.Next() {
		acct, err := scanPgAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

func scanPgLoan(row pgRowScanner) (*models.Loan, error) {
	var loan models.Loan
	var principalStr string
	err := row.Scan(&loan.ID, &loan.LoanNumber, &loan.BorrowerName, &principalStr, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if loan.OutstandingPrincipal, err = decimal.NewFromString(principalStr); err != nil {
		return nil, fmt.Errorf("invalid outstanding principal %q: %w", principalStr, err)
	}
	return &loan, nil
}

func scanPgProvisionDetails(rows pgx.Rows) ([]models.ProvisionDetail, error) {
	var details []models.ProvisionDetail
	for rows.Next() {
		var d models.ProvisionDetail
		var principalStr, pctStr, amountStr string
		if err := rows.Scan(&d.LoanNumber, &d.BorrowerName, &principalStr,
			&d.Classification, &d.OverdueDays, &pctStr, &amountStr, &d.ProvisionDate); err != nil {
			return nil, fmt.Errorf("failed to scan provision row: %w", err)
		}
		var err error
		if d.OutstandingPrincipal, err = decimal.NewFromString(principalStr); err != nil {
			return nil, fmt.Errorf("invalid outstanding principal %q: %w", principalStr, err)
		}
		if d.ProvisionPercent, err = decimal.NewFromString(pctStr); err != nil {
			return nil, fmt.Errorf("invalid provision percent %q: %w", pctStr, err)
		}
		if d.ProvisionAmount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("invalid provision amount %q: %w", amountStr, err)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func scanPgBatchRun(row pgRowScanner) (*models.BatchRun, error) {
	var run models.BatchRun
	var completed *time.Time
	err := row.Scan(&run.ID, &run.JobName, &run.Status, &run.StartedAt, &completed, &run.ProcessedCount, &run.ErrorCount)
	if err != nil {
		return nil, err
	}
	run.CompletedAt = completed
	return &run, nil
}
