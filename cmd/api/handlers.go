package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/corebank/finbatch/pkg/interest"
	"github.com/corebank/finbatch/pkg/provision"
	"github.com/corebank/finbatch/pkg/store"
)

// Server holds the engines and storage behind the trigger API.
type Server struct {
	interest   *interest.Engine
	provisions *provision.Calculator
	reports    *provision.Reporter
	storage    store.Storage
	logger     *slog.Logger
}

// NewServer wires the engines over a Storage.
func NewServer(s store.Storage, logger *slog.Logger) *Server {
	return &Server{
		interest:   interest.NewEngine(s, logger),
		provisions: provision.NewCalculator(s, logger),
		reports:    provision.NewReporter(s),
		storage:    s,
		logger:     logger,
	}
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type capitalizationResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processed_count"`
	Errors         []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// runStatus maps a batch start failure to its HTTP status: 409 while another
// run of the same job holds the lock, 500 otherwise.
func runStatus(err error) int {
	if errors.Is(err, store.ErrRunInProgress) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) runDailyAccrualHandler(w http.ResponseWriter, r *http.Request) {
	processed, err := s.interest.RunDailyAccrual(r.Context())
	if err != nil {
		s.logger.Error("daily accrual run failed", "error", err)
		writeJSON(w, runStatus(err), apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: fmt.Sprintf("Daily interest accrual complete. Processed %d", processed),
	})
}

func (s *Server) runQuarterlyCapitalizationHandler(w http.ResponseWriter, r *http.Request) {
	processed, batchErrs, err := s.interest.RunQuarterlyCapitalization(r.Context())
	if err != nil {
		s.logger.Error("capitalization run failed", "error", err)
		writeJSON(w, runStatus(err), apiResponse{Success: false, Message: err.Error()})
		return
	}

	messages := make([]string, 0, len(batchErrs))
	for _, be := range batchErrs {
		messages = append(messages, be.Message)
	}
	writeJSON(w, http.StatusOK, capitalizationResponse{
		Success:        true,
		Message:        fmt.Sprintf("Quarterly interest capitalization complete. Processed %d", processed),
		ProcessedCount: processed,
		Errors:         messages,
	})
}

func (s *Server) generateProvisionsHandler(w http.ResponseWriter, r *http.Request) {
	processed, err := s.provisions.RunProvisionCalculation(r.Context())
	if err != nil {
		s.logger.Error("provision run failed", "error", err)
		writeJSON(w, runStatus(err), apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: fmt.Sprintf("Loan loss provisioning complete. Processed %d loans", processed),
	})
}

// provisionReportHandler serves the latest-run summary, or an explicit
// window when both from and to query parameters (RFC 3339) are given.
func (s *Server) provisionReportHandler(w http.ResponseWriter, r *http.Request) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	if fromStr != "" || toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid 'from' date, want RFC 3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid 'to' date, want RFC 3339"})
			return
		}
		report, err := s.reports.GetProvisionSummaryForRange(r.Context(), from, to)
		if err != nil {
			s.logger.Error("provision range report failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: report})
		return
	}

	report, err := s.reports.GetProvisionSummary(r.Context())
	if err != nil {
		s.logger.Error("provision report failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: report})
}

func (s *Server) getAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid account ID"})
		return
	}

	acct, err := s.storage.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			writeJSON(w, http.StatusNotFound, apiResponse{Success: false, Message: "account not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: acct})
}

func (s *Server) accountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid account ID"})
		return
	}

	entries, err := s.storage.GetTransactionsForAccount(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: entries})
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid 'limit'"})
			return
		}
		limit = n
	}

	runs, err := s.storage.GetRecentRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiResponse{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: runs})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("healthy"))
}

// Router builds the trigger API routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/interest/daily", s.runDailyAccrualHandler).Methods("POST")
	router.HandleFunc("/interest/quarterly", s.runQuarterlyCapitalizationHandler).Methods("POST")
	router.HandleFunc("/llp/generate", s.generateProvisionsHandler).Methods("POST")
	router.HandleFunc("/llp/report", s.provisionReportHandler).Methods("GET")
	router.HandleFunc("/accounts/{id}", s.getAccountHandler).Methods("GET")
	router.HandleFunc("/accounts/{id}/transactions", s.accountTransactionsHandler).Methods("GET")
	router.HandleFunc("/runs", s.listRunsHandler).Methods("GET")

	return router
}
