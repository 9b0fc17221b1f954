package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/finbatch/pkg/models"
	"github.com/corebank/finbatch/pkg/store"
)

func setupTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api_test.db"), logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewServer(s, logger), s
}

func seedActiveAccount(t *testing.T, s *store.SQLiteStore, balance, rate string) *models.Account {
	t.Helper()
	acct := &models.Account{
		ID:              uuid.New(),
		AccountNumber:   "SB-" + uuid.NewString()[:8],
		OwnerName:       "API Test",
		Balance:         decimal.RequireFromString(balance),
		AccruedInterest: decimal.Zero,
		InterestRate:    decimal.RequireFromString(rate),
		Status:          models.AccountStatusActive,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
	return acct
}

func TestAPI_DailyAccrual(t *testing.T) {
	server, s := setupTestServer(t)
	seedActiveAccount(t, s, "1000", "4.0")
	router := server.Router()

	req := httptest.NewRequest("POST", "/interest/daily", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success=true")
	}
	if resp.Message != "Daily interest accrual complete. Processed 1" {
		t.Errorf("Unexpected message %q", resp.Message)
	}
}

func TestAPI_QuarterlyCapitalization(t *testing.T) {
	server, s := setupTestServer(t)
	acct := seedActiveAccount(t, s, "10000", "6.0")
	router := server.Router()

	// Accrue first, then capitalize.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/interest/daily", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("accrual failed with status %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/interest/quarterly", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success        bool     `json:"success"`
		ProcessedCount int      `json:"processed_count"`
		Errors         []string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || resp.ProcessedCount != 1 || len(resp.Errors) != 0 {
		t.Errorf("Unexpected response: %+v", resp)
	}

	// One day of 6% on 10000 rounds to 1.64 at posting.
	updated, err := s.GetAccount(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("Failed to reload account: %v", err)
	}
	if updated.Balance.StringFixed(2) != "10001.64" {
		t.Errorf("Expected balance 10001.64, got %s", updated.Balance.StringFixed(2))
	}
	if !updated.AccruedInterest.IsZero() {
		t.Errorf("Expected accrued interest reset, got %s", updated.AccruedInterest)
	}
}

func TestAPI_ProvisionGenerateAndReport(t *testing.T) {
	server, s := setupTestServer(t)
	router := server.Router()
	ctx := context.Background()

	loan := &models.Loan{
		ID:                   uuid.New(),
		LoanNumber:           "LN-001",
		BorrowerName:         "Report Borrower",
		OutstandingPrincipal: decimal.NewFromInt(100000),
		Status:               models.LoanStatusActive,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("Failed to seed loan: %v", err)
	}
	inst := &models.LoanInstallment{
		ID:      uuid.New(),
		LoanID:  loan.ID,
		DueDate: time.Now().UTC().AddDate(0, 0, -200),
		Amount:  decimal.NewFromInt(5000),
		Status:  models.InstallmentStatusOverdue,
	}
	if err := s.CreateInstallment(ctx, inst); err != nil {
		t.Fatalf("Failed to seed installment: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/llp/generate", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var genResp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &genResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if genResp.Message != "Loan loss provisioning complete. Processed 1 loans" {
		t.Errorf("Unexpected message %q", genResp.Message)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/llp/report", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var reportResp struct {
		Success bool                   `json:"success"`
		Data    models.ProvisionReport `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &reportResp); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if !reportResp.Success {
		t.Error("Expected success=true")
	}
	if len(reportResp.Data.Details) != 1 {
		t.Fatalf("Expected 1 detail row, got %d", len(reportResp.Data.Details))
	}
	detail := reportResp.Data.Details[0]
	if detail.Classification != models.ClassificationDoubtful {
		t.Errorf("Expected DOUBTFUL, got %s", detail.Classification)
	}
	if detail.ProvisionAmount.StringFixed(2) != "50000.00" {
		t.Errorf("Expected provision 50000.00, got %s", detail.ProvisionAmount)
	}
	if reportResp.Data.TotalProvision.StringFixed(2) != "50000.00" {
		t.Errorf("Expected total provision 50000.00, got %s", reportResp.Data.TotalProvision)
	}
}

func TestAPI_ReportRejectsBadDates(t *testing.T) {
	server, _ := setupTestServer(t)
	router := server.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/llp/report?from=notadate&to=2026-08-01T00:00:00Z", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestAPI_GetAccount(t *testing.T) {
	server, s := setupTestServer(t)
	acct := seedActiveAccount(t, s, "500", "3.5")
	router := server.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/accounts/"+acct.ID.String(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/accounts/"+uuid.NewString(), nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/accounts/not-a-uuid", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}
