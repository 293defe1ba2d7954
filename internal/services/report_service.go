package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"finhealth/internal/amqp"
	"finhealth/internal/analysis"
	"finhealth/internal/core"
)

// Repository is the slice of storage the report service needs.
type Repository interface {
	ListTransactionsWindow(ctx context.Context, year, month, monthsBack int) ([]core.Transaction, error)
	ListLoans(ctx context.Context) ([]core.Loan, error)
	LoanPaidTotals(ctx context.Context) (map[int64]int64, error)
	ListPlannedTransactions(ctx context.Context, activeOnly bool) ([]core.PlannedTransaction, error)
	GetSettings(ctx context.Context) (*core.AppSettings, error)
	TotalBalance(ctx context.Context) (int64, error)
}

// AlertPublisher pushes critical warnings to the message broker.
type AlertPublisher interface {
	PublishWarningAlert(ctx context.Context, msg *amqp.WarningAlertMessage) error
}

// ReportService wires storage and the analysis engine together and owns the
// only wall clock in the pipeline. A nil alert publisher disables alerting.
type ReportService struct {
	repo             Repository
	alerts           AlertPublisher
	analysisMonths   int
	projectionMonths int
	now              func() time.Time
}

func NewReportService(repo Repository, alerts AlertPublisher, analysisMonths, projectionMonths int) *ReportService {
	if analysisMonths <= 0 {
		analysisMonths = 6
	}
	if projectionMonths <= 0 {
		projectionMonths = 12
	}
	return &ReportService{
		repo:             repo,
		alerts:           alerts,
		analysisMonths:   analysisMonths,
		projectionMonths: projectionMonths,
		now:              time.Now,
	}
}

// snapshot is one consistent read of everything the analysis needs.
type snapshot struct {
	Transactions []core.Transaction
	Loans        []core.Loan
	Paid         map[int64]int64
	Settings     *core.AppSettings
}

// fetchSnapshot loads transactions, loans, payment totals and settings
// concurrently. monthsBack controls how far the transaction window reaches.
func (s *ReportService) fetchSnapshot(ctx context.Context, year, month, monthsBack int) (*snapshot, error) {
	var snap snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.repo.ListTransactionsWindow(ctx, year, month, monthsBack)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		snap.Transactions = txs
		return nil
	})
	g.Go(func() error {
		loans, err := s.repo.ListLoans(ctx)
		if err != nil {
			return fmt.Errorf("load loans: %w", err)
		}
		snap.Loans = loans
		return nil
	})
	g.Go(func() error {
		paid, err := s.repo.LoanPaidTotals(ctx)
		if err != nil {
			return fmt.Errorf("load payment totals: %w", err)
		}
		snap.Paid = paid
		return nil
	})
	g.Go(func() error {
		settings, err := s.repo.GetSettings(ctx)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		snap.Settings = settings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// MonthlyReport generates the full report for (year, month). The window
// reaches back far enough to cover both the trend baseline and the whole
// target year up to the target month, which feeds the savings scan.
func (s *ReportService) MonthlyReport(ctx context.Context, year, month int) (analysis.MonthlyReport, error) {
	monthsBack := s.analysisMonths
	if month-1 > monthsBack {
		monthsBack = month - 1
	}

	snap, err := s.fetchSnapshot(ctx, year, month, monthsBack)
	if err != nil {
		return analysis.MonthlyReport{}, err
	}
	return analysis.GenerateMonthlyReport(snap.Transactions, year, month, snap.Settings), nil
}

// HealthScore rates the trailing analysis window ending at (year, month).
func (s *ReportService) HealthScore(ctx context.Context, year, month int) (analysis.HealthScore, error) {
	snap, err := s.fetchSnapshot(ctx, year, month, s.analysisMonths-1)
	if err != nil {
		return analysis.HealthScore{}, err
	}
	return analysis.CalculateHealthScore(snap.Transactions, snap.Loans, s.analysisMonths, snap.Paid), nil
}

// Warnings evaluates the real-time spending rules for (year, month) and
// pushes critical ones to the broker. Alert failures are logged, never
// propagated: the caller still gets the warnings.
func (s *ReportService) Warnings(ctx context.Context, year, month int) ([]analysis.SpendingWarning, error) {
	snap, err := s.fetchSnapshot(ctx, year, month, s.analysisMonths)
	if err != nil {
		return nil, err
	}

	thresholds := analysis.ResolveThresholds(snap.Settings)
	warnings := analysis.GenerateWarnings(snap.Transactions, year, month, &thresholds, s.now())

	s.publishCritical(ctx, year, month, warnings)
	return warnings, nil
}

func (s *ReportService) publishCritical(ctx context.Context, year, month int, warnings []analysis.SpendingWarning) {
	if s.alerts == nil {
		return
	}
	for _, w := range warnings {
		if w.Severity != analysis.SeverityCritical {
			continue
		}
		msg := amqp.NewWarningAlertMessage(w.ID, year, month,
			w.Severity, w.Type, w.Title, w.Message, w.Category, w.CurrentAmount)
		if err := s.alerts.PublishWarningAlert(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish warning alert",
				"warning_id", w.ID, "error", err)
		}
	}
}

// Projection computes the future balance series starting from the current
// month, seeded with the lifetime transaction balance.
func (s *ReportService) Projection(ctx context.Context, months int) ([]analysis.FutureBalancePoint, error) {
	if months <= 0 {
		months = s.projectionMonths
	}

	var (
		balance int64
		planned []core.PlannedTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.repo.TotalBalance(gctx)
		if err != nil {
			return fmt.Errorf("load balance: %w", err)
		}
		balance = b
		return nil
	})
	g.Go(func() error {
		p, err := s.repo.ListPlannedTransactions(gctx, true)
		if err != nil {
			return fmt.Errorf("load planned transactions: %w", err)
		}
		planned = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	return analysis.ComputeFutureBalance(balance, planned, months, now.Year(), int(now.Month())), nil
}

// Thresholds returns the resolved spend ceilings with user overrides applied.
func (s *ReportService) Thresholds(ctx context.Context) (analysis.ResolvedThresholds, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return analysis.ResolvedThresholds{}, fmt.Errorf("load settings: %w", err)
	}
	return analysis.ResolveThresholds(settings), nil
}
