package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finhealth/internal/core"
	"finhealth/internal/storage"
)

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	report, err := s.reports.MonthlyReport(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Monthly report failed",
			"error", err, "year", year, "month", month)
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	score, err := s.reports.HealthScore(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Health score failed",
			"error", err, "year", year, "month", month)
		writeError(w, http.StatusInternalServerError, "health score failed")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleWarnings is deliberately uncached: the weekly rule depends on the
// wall clock, and alerts should reflect the freshest data.
func (s *Server) handleWarnings(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	warnings, err := s.reports.Warnings(r.Context(), year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Warning scan failed",
			"error", err, "year", year, "month", month)
		writeError(w, http.StatusInternalServerError, "warning scan failed")
		return
	}
	writeJSON(w, http.StatusOK, warnings)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	months := 0
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 60 {
			writeError(w, http.StatusBadRequest, "months must be between 1 and 60")
			return
		}
		months = m
	}

	points, err := s.reports.Projection(r.Context(), months)
	if err != nil {
		slog.ErrorContext(r.Context(), "Projection failed", "error", err, "months", months)
		writeError(w, http.StatusInternalServerError, "projection failed")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.reports.Thresholds(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Threshold resolution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "threshold resolution failed")
		return
	}
	writeJSON(w, http.StatusOK, thresholds)
}

type createTransactionRequest struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	Amount     int64  `json:"amount"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Group      string `json:"group"`
	SpecialTag string `json:"special_tag"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	year, _ := parseYearMonth(r)

	txs, err := s.store.ListTransactionsYear(r.Context(), year)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err, "year", year)
		writeError(w, http.StatusInternalServerError, "list transactions failed")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	saved, err := s.store.CreateTransaction(r.Context(), core.Transaction{
		Date:          date,
		Title:         strings.TrimSpace(req.Title),
		Amount:        req.Amount,
		Type:          core.TransactionType(req.Type),
		Category:      strings.TrimSpace(req.Category),
		CategoryGroup: strings.TrimSpace(req.Group),
		SpecialTag:    strings.TrimSpace(req.SpecialTag),
	})
	if err != nil {
		writeValidationError(w, r, err, "create transaction")
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type loanResponse struct {
	core.Loan
	Paid      int64 `json:"paid"`
	Remaining int64 `json:"remaining"`
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.store.ListLoans(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List loans failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list loans failed")
		return
	}
	paid, err := s.store.LoanPaidTotals(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Loan totals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list loans failed")
		return
	}

	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanResponse{
			Loan:      l,
			Paid:      paid[l.ID],
			Remaining: l.Remaining(paid[l.ID]),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createLoanRequest struct {
	Title            string `json:"title"`
	Amount           int64  `json:"amount"`
	Date             string `json:"date"`
	Type             string `json:"type"`
	Counterparty     string `json:"counterparty"`
	RelatedTags      string `json:"related_tags"`
	OriginalCategory string `json:"original_category"`
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	saved, err := s.store.CreateLoan(r.Context(), core.Loan{
		Title:            strings.TrimSpace(req.Title),
		Amount:           req.Amount,
		Date:             date,
		Type:             core.LoanType(req.Type),
		Counterparty:     strings.TrimSpace(req.Counterparty),
		RelatedTags:      strings.TrimSpace(req.RelatedTags),
		OriginalCategory: strings.TrimSpace(req.OriginalCategory),
	})
	if err != nil {
		writeValidationError(w, r, err, "create loan")
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	if err := s.store.DeleteLoan(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete loan failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type createPaymentRequest struct {
	Amount int64  `json:"amount"`
	Date   string `json:"date"`
	Note   string `json:"note"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	saved, err := s.store.CreatePayment(r.Context(), core.Payment{
		LoanID: loanID,
		Amount: req.Amount,
		Date:   date,
		Note:   strings.TrimSpace(req.Note),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		if errors.Is(err, storage.ErrOverpayment) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeValidationError(w, r, err, "create payment")
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	if err := s.store.DeletePayment(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete payment failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkLoanPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	if err := s.store.MarkLoanPaid(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		slog.ErrorContext(r.Context(), "Mark loan paid failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

type createPlannedRequest struct {
	Title      string `json:"title"`
	Amount     int64  `json:"amount"`
	Date       string `json:"date"`
	Type       string `json:"type"`
	Category   string `json:"category"`
	Recurrence string `json:"recurrence"`
	Note       string `json:"note"`
}

func (s *Server) handleListPlanned(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	planned, err := s.store.ListPlannedTransactions(r.Context(), activeOnly)
	if err != nil {
		slog.ErrorContext(r.Context(), "List planned failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list planned failed")
		return
	}
	writeJSON(w, http.StatusOK, planned)
}

func (s *Server) handleCreatePlanned(w http.ResponseWriter, r *http.Request) {
	var req createPlannedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	saved, err := s.store.CreatePlannedTransaction(r.Context(), core.PlannedTransaction{
		Title:       strings.TrimSpace(req.Title),
		Amount:      req.Amount,
		PlannedDate: date,
		Type:        core.TransactionType(req.Type),
		Category:    strings.TrimSpace(req.Category),
		Recurrence:  core.Recurrence(req.Recurrence),
		Active:      true,
		Note:        strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeValidationError(w, r, err, "create planned transaction")
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleSetPlannedActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid planned transaction id")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SetPlannedTransactionActive(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "planned transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Set planned active failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	s.invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Get settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "get settings failed")
		return
	}
	if settings == nil {
		settings = &core.AppSettings{}
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.AppSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		slog.ErrorContext(r.Context(), "Save settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "save settings failed")
		return
	}

	s.invalidate()
	writeJSON(w, http.StatusOK, settings)
}

// writeValidationError maps domain validation failures to 422 and everything
// else to 500.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidLoanType),
		errors.Is(err, core.ErrInvalidRecur),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrTitleTooLong),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrZeroDate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
