package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"finhealth/internal/analysis"
	"finhealth/internal/core"
)

// ReportProvider is the analysis surface the API exposes.
type ReportProvider interface {
	MonthlyReport(ctx context.Context, year, month int) (analysis.MonthlyReport, error)
	HealthScore(ctx context.Context, year, month int) (analysis.HealthScore, error)
	Warnings(ctx context.Context, year, month int) ([]analysis.SpendingWarning, error)
	Projection(ctx context.Context, months int) ([]analysis.FutureBalancePoint, error)
	Thresholds(ctx context.Context) (analysis.ResolvedThresholds, error)
}

// Store is the mutation surface behind the write endpoints.
type Store interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactionsYear(ctx context.Context, year int) ([]core.Transaction, error)
	CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error)
	ListLoans(ctx context.Context) ([]core.Loan, error)
	LoanPaidTotals(ctx context.Context) (map[int64]int64, error)
	DeleteLoan(ctx context.Context, id int64) error
	CreatePayment(ctx context.Context, p core.Payment) (core.Payment, error)
	DeletePayment(ctx context.Context, id int64) error
	MarkLoanPaid(ctx context.Context, id int64) error
	CreatePlannedTransaction(ctx context.Context, p core.PlannedTransaction) (core.PlannedTransaction, error)
	ListPlannedTransactions(ctx context.Context, activeOnly bool) ([]core.PlannedTransaction, error)
	SetPlannedTransactionActive(ctx context.Context, id int64, active bool) error
	GetSettings(ctx context.Context) (*core.AppSettings, error)
	SaveSettings(ctx context.Context, s core.AppSettings) error
}

// Server is the JSON API over the analysis engine. Read endpoints are cached;
// every successful mutation flushes the whole cache, since any write can move
// every derived number.
type Server struct {
	http.Server
	reports     ReportProvider
	store       Store
	rateLimiter *rateLimiter
	cache       *gocache.Cache
}

// NewServer configures routes and caching, returning a ready-to-run server.
func NewServer(addr string, reports ReportProvider, store Store, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		reports:     reports,
		store:       store,
		rateLimiter: newRateLimiter(),
		cache:       gocache.New(cacheTTL, 2*cacheTTL),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/report", s.withMiddleware(s.cached(s.handleMonthlyReport)))
	mux.HandleFunc("GET /api/health-score", s.withMiddleware(s.cached(s.handleHealthScore)))
	mux.HandleFunc("GET /api/warnings", s.withMiddleware(s.handleWarnings))
	mux.HandleFunc("GET /api/projection", s.withMiddleware(s.cached(s.handleProjection)))
	mux.HandleFunc("GET /api/thresholds", s.withMiddleware(s.cached(s.handleThresholds)))

	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/loans", s.withMiddleware(s.handleListLoans))
	mux.HandleFunc("POST /api/loans", s.withMiddleware(s.handleCreateLoan))
	mux.HandleFunc("DELETE /api/loans/{id}", s.withMiddleware(s.handleDeleteLoan))
	mux.HandleFunc("POST /api/loans/{id}/payments", s.withMiddleware(s.handleCreatePayment))
	mux.HandleFunc("POST /api/loans/{id}/paid", s.withMiddleware(s.handleMarkLoanPaid))
	mux.HandleFunc("DELETE /api/payments/{id}", s.withMiddleware(s.handleDeletePayment))

	mux.HandleFunc("GET /api/planned", s.withMiddleware(s.handleListPlanned))
	mux.HandleFunc("POST /api/planned", s.withMiddleware(s.handleCreatePlanned))
	mux.HandleFunc("POST /api/planned/{id}/active", s.withMiddleware(s.handleSetPlannedActive))

	mux.HandleFunc("GET /api/settings", s.withMiddleware(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withMiddleware(s.handleSaveSettings))

	return s
}

// Shutdown stops the HTTP server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	return s.Server.Shutdown(ctx)
}

// withMiddleware adds security headers, rate limiting on writes, request IDs
// and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// cached serves a GET handler from the response cache, keyed by path and
// query. Only 200 responses are stored.
func (s *Server) cached(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.RawQuery
		if body, found := s.cache.Get(key); found {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("X-Cache", "hit")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body.([]byte))
			return
		}

		rec := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		if rec.statusCode == http.StatusOK && len(rec.body) > 0 {
			s.cache.SetDefault(key, rec.body)
		}
	}
}

// invalidate drops every cached response. Mutations call this instead of
// trying to compute which derived endpoints a write touches.
func (s *Server) invalidate() {
	s.cache.Flush()
}

// recordingWriter tees the response body for caching.
type recordingWriter struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body = append(rw.body, b...)
	return rw.ResponseWriter.Write(b)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
