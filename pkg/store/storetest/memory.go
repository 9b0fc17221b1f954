// Package storetest provides an in-memory Storage for engine tests, with
// per-entity failure injection to exercise partial-failure paths.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

// MemStore is a map-backed Storage implementation.
type MemStore struct {
	mu sync.Mutex

	Accounts     map[uuid.UUID]*models.Account
	Transactions []*models.AccountTransaction
	Loans        map[uuid.UUID]*models.Loan
	Installments []*models.LoanInstallment
	Provisions   []*models.LoanProvision
	Runs         []*models.BatchRun

	// FailAccounts and FailLoans force write errors for specific entities.
	FailAccounts map[uuid.UUID]error
	FailLoans    map[uuid.UUID]error
	// SelectionErr, when set, fails every selection query.
	SelectionErr error
}

// New creates an empty MemStore.
func New() *MemStore {
	return &MemStore{
		Accounts:     make(map[uuid.UUID]*models.Account),
		Loans:        make(map[uuid.UUID]*models.Loan),
		FailAccounts: make(map[uuid.UUID]error),
		FailLoans:    make(map[uuid.UUID]error),
	}
}

func (m *MemStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Accounts[acct.ID] = acct
	return nil
}

func (m *MemStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.Accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return acct, nil
}

func (m *MemStore) GetAccountsForAccrual(ctx context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SelectionErr != nil {
		return nil, m.SelectionErr
	}
	var out []*models.Account
	for _, a := range m.Accounts {
		if a.Status == models.AccountStatusActive && a.Balance.IsPositive() && a.InterestRate.IsPositive() {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (m *MemStore) GetAccountsForCapitalization(ctx context.Context) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SelectionErr != nil {
		return nil, m.SelectionErr
	}
	var out []*models.Account
	for _, a := range m.Accounts {
		if a.Status == models.AccountStatusActive && a.AccruedInterest.IsPositive() {
			out = append(out, a)
		}
	}
	sortAccounts(out)
	return out, nil
}

func (m *MemStore) AddAccruedInterest(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, accruedOn time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailAccounts[accountID]; err != nil {
		return err
	}
	acct, ok := m.Accounts[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	acct.AccruedInterest = acct.AccruedInterest.Add(amount)
	d := accruedOn
	acct.LastAccrualDate = &d
	return nil
}

func (m *MemStore) CapitalizeAccruedInterest(ctx context.Context, accountID uuid.UUID, postedAt time.Time) (*models.AccountTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailAccounts[accountID]; err != nil {
		return nil, err
	}
	acct, ok := m.Accounts[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	amount := acct.AccruedInterest.Round(2)
	if !amount.IsPositive() {
		return nil, store.ErrNothingAccrued
	}
	acct.Balance = acct.Balance.Add(amount)
	acct.AccruedInterest = decimal.Zero
	posted := postedAt
	acct.LastInterestPostedDate = &posted

	entry := &models.AccountTransaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		Type:            models.TransactionTypeInterestCredit,
		Amount:          amount,
		Description:     "Quarterly interest capitalization",
		RunningBalance:  acct.Balance,
		TransactionDate: postedAt,
	}
	m.Transactions = append(m.Transactions, entry)
	return entry, nil
}

func (m *MemStore) GetTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*models.AccountTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AccountTransaction
	for _, tx := range m.Transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *MemStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loans[loan.ID] = loan
	return nil
}

func (m *MemStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.Loans[id]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	return loan, nil
}

func (m *MemStore) GetLoansForProvisioning(ctx context.Context) ([]*models.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SelectionErr != nil {
		return nil, m.SelectionErr
	}
	var out []*models.Loan
	for _, l := range m.Loans {
		if l.Status == models.LoanStatusActive && l.OutstandingPrincipal.IsPositive() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoanNumber < out[j].LoanNumber })
	return out, nil
}

func (m *MemStore) CreateInstallment(ctx context.Context, inst *models.LoanInstallment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Installments = append(m.Installments, inst)
	return nil
}

func (m *MemStore) GetEarliestUnpaidInstallment(ctx context.Context, loanID uuid.UUID) (*models.LoanInstallment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest *models.LoanInstallment
	for _, inst := range m.Installments {
		if inst.LoanID != loanID || inst.Status == models.InstallmentStatusPaid {
			continue
		}
		if earliest == nil || inst.DueDate.Before(earliest.DueDate) {
			earliest = inst
		}
	}
	if earliest == nil {
		return nil, store.ErrNoUnpaidInstallment
	}
	return earliest, nil
}

func (m *MemStore) CreateProvision(ctx context.Context, p *models.LoanProvision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailLoans[p.LoanID]; err != nil {
		return err
	}
	m.Provisions = append(m.Provisions, p)
	return nil
}

func (m *MemStore) GetProvisionsByRun(ctx context.Context, runID uuid.UUID) ([]models.ProvisionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProvisionDetail
	for _, p := range m.Provisions {
		if p.RunID != runID {
			continue
		}
		out = append(out, m.detailFor(p))
	}
	return out, nil
}

func (m *MemStore) GetProvisionsBetween(ctx context.Context, from, to time.Time) ([]models.ProvisionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProvisionDetail
	for _, p := range m.Provisions {
		if p.ProvisionDate.Before(from) || p.ProvisionDate.After(to) {
			continue
		}
		out = append(out, m.detailFor(p))
	}
	return out, nil
}

func (m *MemStore) detailFor(p *models.LoanProvision) models.ProvisionDetail {
	d := models.ProvisionDetail{
		Classification:   p.Classification,
		OverdueDays:      p.OverdueDays,
		ProvisionPercent: p.ProvisionPercent,
		ProvisionAmount:  p.ProvisionAmount,
		ProvisionDate:    p.ProvisionDate,
	}
	if loan, ok := m.Loans[p.LoanID]; ok {
		d.LoanNumber = loan.LoanNumber
		d.BorrowerName = loan.BorrowerName
		d.OutstandingPrincipal = loan.OutstandingPrincipal
	}
	return d
}

func (m *MemStore) BeginBatchRun(ctx context.Context, jobName string, startedAt time.Time) (*models.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Runs {
		if r.JobName == jobName && r.Status == models.BatchRunStatusRunning {
			return nil, store.ErrRunInProgress
		}
	}
	run := &models.BatchRun{
		ID:        uuid.New(),
		JobName:   jobName,
		Status:    models.BatchRunStatusRunning,
		StartedAt: startedAt,
	}
	m.Runs = append(m.Runs, run)
	return run, nil
}

func (m *MemStore) CompleteBatchRun(ctx context.Context, runID uuid.UUID, processed, failed int, completedAt time.Time) error {
	return m.closeRun(runID, models.BatchRunStatusCompleted, processed, failed, completedAt)
}

func (m *MemStore) FailBatchRun(ctx context.Context, runID uuid.UUID, completedAt time.Time) error {
	return m.closeRun(runID, models.BatchRunStatusFailed, 0, 0, completedAt)
}

func (m *MemStore) closeRun(runID uuid.UUID, status string, processed, failed int, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Runs {
		if r.ID == runID {
			r.Status = status
			r.ProcessedCount = processed
			r.ErrorCount = failed
			done := completedAt
			r.CompletedAt = &done
			return nil
		}
	}
	return store.ErrRunNotFound
}

func (m *MemStore) LatestCompletedRun(ctx context.Context, jobName string) (*models.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.BatchRun
	for _, r := range m.Runs {
		if r.JobName != jobName || r.Status != models.BatchRunStatusCompleted {
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, store.ErrRunNotFound
	}
	return latest, nil
}

func (m *MemStore) GetRecentRuns(ctx context.Context, limit int) ([]*models.BatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]*models.BatchRun, len(m.Runs))
	copy(runs, m.Runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemStore) Close() error { return nil }

func sortAccounts(accounts []*models.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountNumber < accounts[j].AccountNumber
	})
}
