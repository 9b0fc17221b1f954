package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the single-node Storage implementation. Monetary columns are
// stored as TEXT so no decimal precision is lost.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database file and initializes the schema.
func NewSQLiteStore(dataSourceName string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Info("sqlite store ready", "dsn", dataSourceName)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		owner_name TEXT NOT NULL,
		balance TEXT NOT NULL,
		accrued_interest TEXT NOT NULL DEFAULT '0',
		interest_rate TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_accrual_date DATETIME,
		last_interest_posted_date DATETIME
	);
	CREATE TABLE IF NOT EXISTS account_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		running_balance TEXT NOT NULL,
		transaction_date DATETIME NOT NULL,
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		loan_number TEXT NOT NULL UNIQUE,
		borrower_name TEXT NOT NULL,
		outstanding_principal TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS loan_provisions (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		classification TEXT NOT NULL,
		overdue_days INTEGER NOT NULL,
		provision_percent TEXT NOT NULL,
		provision_amount TEXT NOT NULL,
		provision_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		job_name TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		processed_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_installments_loan_due ON loan_installments(loan_id, due_date);
	CREATE INDEX IF NOT EXISTS idx_provisions_run ON loan_provisions(run_id);
	CREATE INDEX IF NOT EXISTS idx_batch_runs_job ON batch_runs(job_name, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

const accountColumns = `id, account_number, owner_name, balance, accrued_interest, interest_rate, status, created_at, updated_at, last_accrual_date, last_interest_posted_date`

// CreateAccount inserts a new account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID.String(), acct.AccountNumber, acct.OwnerName, acct.Balance, acct.AccruedInterest,
		acct.InterestRate, acct.Status, acct.CreatedAt, acct.UpdatedAt, acct.LastAccrualDate, acct.LastInterestPostedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id.String())
	acct, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// GetAccountsForAccrual selects the accounts eligible for daily accrual.
// The balance and rate filters use decimal string comparison via CAST since
// monetary columns are TEXT.
func (s *SQLiteStore) GetAccountsForAccrual(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE status = ? AND CAST(balance AS REAL) > 0 AND CAST(interest_rate AS REAL) > 0`,
		models.AccountStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts for accrual: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// GetAccountsForCapitalization selects the accounts with interest waiting to
// be capitalized.
func (s *SQLiteStore) GetAccountsForCapitalization(ctx context.Context) ([]*models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE status = ? AND CAST(accrued_interest AS REAL) > 0`,
		models.AccountStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts for capitalization: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// AddAccruedInterest increments the account's accrued interest inside a
// transaction. SQLite TEXT decimals cannot be incremented in SQL, so the
// current value is read and rewritten under the write lock.
func (s *SQLiteStore) AddAccruedInterest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, accruedOn time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accrued decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT accrued_interest FROM accounts WHERE id = ?`, accountID.String()).Scan(&accrued)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to read accrued interest: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET accrued_interest = ?, last_accrual_date = ?, updated_at = ? WHERE id = ?`,
		accrued.Add(amount), accruedOn, time.Now().UTC(), accountID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update accrued interest: %w", err)
	}
	return tx.Commit()
}

// CapitalizeAccruedInterest posts the accrued interest to the balance. The
// journal insert and the account update share one transaction so a failure
// of either leaves the account untouched.
func (s *SQLiteStore) CapitalizeAccruedInterest(ctx context.Context, accountID uuid.UUID, postedAt time.Time) (*models.AccountTransaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance, accrued decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT balance, accrued_interest FROM accounts WHERE id = ?`, accountID.String()).
		Scan(&balance, &accrued)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read account: %w", err)
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
	_, err = tx.ExecContext(ctx,
		`INSERT INTO account_transactions (id, account_id, type, amount, description, running_balance, transaction_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.AccountID.String(), entry.Type, entry.Amount, entry.Description, entry.RunningBalance, entry.TransactionDate,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert interest credit entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, accrued_interest = '0', last_interest_posted_date = ?, updated_at = ? WHERE id = ?`,
		newBalance, postedAt, postedAt, accountID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit capitalization: %w", err)
	}
	return entry, nil
}

// GetTransactionsForAccount retrieves the ledger entries of an account, oldest first.
func (s *SQLiteStore) GetTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AccountTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, type, amount, description, running_balance, transaction_date
		 FROM account_transactions WHERE account_id = ? ORDER BY transaction_date ASC`,
		accountID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []*models.AccountTransaction
	for rows.Next() {
		var entry models.AccountTransaction
		var entryID, acctID string
		if err := rows.Scan(&entryID, &acctID, &entry.Type, &entry.Amount, &entry.Description, &entry.RunningBalance, &entry.TransactionDate); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		entry.ID = uuid.MustParse(entryID)
		entry.AccountID = uuid.MustParse(acctID)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

// CreateLoan inserts a new loan.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (id, loan_number, borrower_name, outstanding_principal, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.LoanNumber, loan.BorrowerName, loan.OutstandingPrincipal, loan.Status, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	var loanID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, loan_number, borrower_name, outstanding_principal, status, created_at, updated_at FROM loans WHERE id = ?`,
		id.String(),
	).Scan(&loanID, &loan.LoanNumber, &loan.BorrowerName, &loan.OutstandingPrincipal, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	loan.ID = uuid.MustParse(loanID)
	return &loan, nil
}

// GetLoansForProvisioning selects the loans eligible for provisioning.
func (s *SQLiteStore) GetLoansForProvisioning(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, loan_number, borrower_name, outstanding_principal, status, created_at, updated_at
		 FROM loans WHERE status = ? AND CAST(outstanding_principal AS REAL) > 0`,
		models.LoanStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select loans for provisioning: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		var loan models.Loan
		var loanID string
		if err := rows.Scan(&loanID, &loan.LoanNumber, &loan.BorrowerName, &loan.OutstandingPrincipal, &loan.Status, &loan.CreatedAt, &loan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loan.ID = uuid.MustParse(loanID)
		loans = append(loans, &loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateInstallment inserts a loan installment.
func (s *SQLiteStore) CreateInstallment(ctx context.Context, inst *models.LoanInstallment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loan_installments (id, loan_id, due_date, amount, status) VALUES (?, ?, ?, ?, ?)`,
		inst.ID.String(), inst.LoanID.String(), inst.DueDate, inst.Amount, inst.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create installment: %w", err)
	}
	return nil
}

// GetEarliestUnpaidInstallment finds the first installment of the loan that
// is not PAID, by due date ascending.
func (s *SQLiteStore) GetEarliestUnpaidInstallment(ctx context.Context, loanID uuid.UUID) (*models.LoanInstallment, error) {
	var inst models.LoanInstallment
	var instID, instLoanID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, loan_id, due_date, amount, status FROM loan_installments
		 WHERE loan_id = ? AND status != ? ORDER BY due_date ASC LIMIT 1`,
		loanID.String(), models.InstallmentStatusPaid,
	).Scan(&instID, &instLoanID, &inst.DueDate, &inst.Amount, &inst.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoUnpaidInstallment
		}
		return nil, fmt.Errorf("failed to get earliest unpaid installment: %w", err)
	}
	inst.ID = uuid.MustParse(instID)
	inst.LoanID = uuid.MustParse(instLoanID)
	return &inst, nil
}

// CreateProvision inserts an immutable provision snapshot.
func (s *SQLiteStore) CreateProvision(ctx context.Context, p *models.LoanProvision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loan_provisions (id, loan_id, run_id, classification, overdue_days, provision_percent, provision_amount, provision_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.LoanID.String(), p.RunID.String(), p.Classification, p.OverdueDays, p.ProvisionPercent, p.ProvisionAmount, p.ProvisionDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create provision: %w", err)
	}
	return nil
}

const provisionDetailQuery = `
	SELECT l.loan_number, l.borrower_name, l.outstanding_principal,
	       p.classification, p.overdue_days, p.provision_percent, p.provision_amount, p.provision_date
	FROM loan_provisions p
	JOIN loans l ON l.id = p.loan_id`

// GetProvisionsByRun returns the snapshots of one calculation run, joined
// with their loans.
func (s *SQLiteStore) GetProvisionsByRun(ctx context.Context, runID uuid.UUID) ([]models.ProvisionDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		provisionDetailQuery+` WHERE p.run_id = ? ORDER BY l.loan_number ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get provisions for run %s: %w", runID, err)
	}
	defer rows.Close()
	return scanProvisionDetails(rows)
}

// GetProvisionsBetween returns snapshots whose provision date falls in [from, to].
func (s *SQLiteStore) GetProvisionsBetween(ctx context.Context, from, to time.Time) ([]models.ProvisionDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		provisionDetailQuery+` WHERE p.provision_date >= ? AND p.provision_date <= ? ORDER BY l.loan_number ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get provisions between %s and %s: %w", from, to, err)
	}
	defer rows.Close()
	return scanProvisionDetails(rows)
}

// BeginBatchRun opens a batch run record if no run of the same job is open.
// The check and the insert share a transaction; SQLite's single-writer lock
// makes that check-and-set atomic.
func (s *SQLiteStore) BeginBatchRun(ctx context.Context, jobName string, startedAt time.Time) (*models.BatchRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_runs WHERE job_name = ? AND status = ?`,
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
	_, err = tx.ExecContext(ctx,
		`INSERT INTO batch_runs (id, job_name, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.JobName, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert batch run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch run: %w", err)
	}
	return run, nil
}

// CompleteBatchRun closes a run with its counters.
func (s *SQLiteStore) CompleteBatchRun(ctx context.Context, runID uuid.UUID, processed, failed int, completedAt time.Time) error {
	return s.closeBatchRun(ctx, runID, models.BatchRunStatusCompleted, processed, failed, completedAt)
}

// FailBatchRun closes a run that could not finish.
func (s *SQLiteStore) FailBatchRun(ctx context.Context, runID uuid.UUID, completedAt time.Time) error {
	return s.closeBatchRun(ctx, runID, models.BatchRunStatusFailed, 0, 0, completedAt)
}

func (s *SQLiteStore) closeBatchRun(ctx context.Context, runID uuid.UUID, status string, processed, failed int, completedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE batch_runs SET status = ?, processed_count = ?, error_count = ?, completed_at = ? WHERE id = ?`,
		status, processed, failed, completedAt, runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to close batch run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// LatestCompletedRun returns the newest COMPLETED run of a job.
func (s *SQLiteStore) LatestCompletedRun(ctx context.Context, jobName string) (*models.BatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_name, status, started_at, completed_at, processed_count, error_count
		 FROM batch_runs WHERE job_name = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		jobName, models.BatchRunStatusCompleted,
	)
	run, err := scanBatchRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get latest completed run: %w", err)
	}
	return run, nil
}

// GetRecentRuns returns the newest runs across all jobs.
func (s *SQLiteStore) GetRecentRuns(ctx context.Context, limit int) ([]*models.BatchRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_name, status, started_at, completed_at, processed_count, error_count
		 FROM batch_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BatchRun
	for rows.Next() {
		run, err := scanBatchRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acct models.Account
	var acctID string
	var lastAccrual, lastPosted sql.NullTime
	err := row.Scan(&acctID, &acct.AccountNumber, &acct.OwnerName, &acct.Balance, &acct.AccruedInterest,
		&acct.InterestRate, &acct.Status, &acct.CreatedAt, &acct.UpdatedAt, &lastAccrual, &lastPosted)
	if err != nil {
		return nil, err
	}
	acct.ID = uuid.MustParse(acctID)
	if lastAccrual.Valid {
		acct.LastAccrualDate = &lastAccrual.Time
	}
	if lastPosted.Valid {
		acct.LastInterestPostedDate = &lastPosted.Time
	}
	return &acct, nil
}

func scanAccounts(rows *sql.Rows) ([]*models.Account, error) {
	var accounts []*models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return accounts, nil
}

func scanProvisionDetails(rows *sql.Rows) ([]models.ProvisionDetail, error) {
	var details []models.ProvisionDetail
	for rows.Next() {
		var d models.ProvisionDetail
		if err := rows.Scan(&d.LoanNumber, &d.BorrowerName, &d.OutstandingPrincipal,
			&d.Classification, &d.OverdueDays, &d.ProvisionPercent, &d.ProvisionAmount, &d.ProvisionDate); err != nil {
			return nil, fmt.Errorf("failed to scan provision row: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return details, nil
}

func scanBatchRun(row rowScanner) (*models.BatchRun, error) {
	var run models.BatchRun
	var runID string
	var completed sql.NullTime
	err := row.Scan(&runID, &run.JobName, &run.Status, &run.StartedAt, &completed, &run.ProcessedCount, &run.ErrorCount)
	if err != nil {
		return nil, err
	}
	run.ID = uuid.MustParse(runID)
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	return &run, nil
}
