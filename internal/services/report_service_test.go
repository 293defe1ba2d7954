package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhealth/internal/amqp"
	"finhealth/internal/analysis"
	"finhealth/internal/core"
)

type fakeRepo struct {
	txs      []core.Transaction
	loans    []core.Loan
	paid     map[int64]int64
	planned  []core.PlannedTransaction
	settings *core.AppSettings
	balance  int64

	windowMonthsBack int
	failSettings     bool
}

func (f *fakeRepo) ListTransactionsWindow(ctx context.Context, year, month, monthsBack int) ([]core.Transaction, error) {
	f.windowMonthsBack = monthsBack
	return f.txs, nil
}

func (f *fakeRepo) ListLoans(ctx context.Context) ([]core.Loan, error) { return f.loans, nil }

func (f *fakeRepo) LoanPaidTotals(ctx context.Context) (map[int64]int64, error) {
	return f.paid, nil
}

func (f *fakeRepo) ListPlannedTransactions(ctx context.Context, activeOnly bool) ([]core.PlannedTransaction, error) {
	return f.planned, nil
}

func (f *fakeRepo) GetSettings(ctx context.Context) (*core.AppSettings, error) {
	if f.failSettings {
		return nil, errors.New("settings table unavailable")
	}
	return f.settings, nil
}

func (f *fakeRepo) TotalBalance(ctx context.Context) (int64, error) { return f.balance, nil }

type fakePublisher struct {
	published []*amqp.WarningAlertMessage
	err       error
}

func (f *fakePublisher) PublishWarningAlert(ctx context.Context, msg *amqp.WarningAlertMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func tx(y, m, d int, cat string, amount int64, tt core.TransactionType) core.Transaction {
	t := core.Transaction{
		Date: core.NewDate(y, m, d), Title: cat, Amount: amount, Type: tt, Category: cat,
	}
	t.Normalize()
	return t
}

func TestMonthlyReportWindowCoversTargetYear(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewReportService(repo, nil, 6, 12)

	// November needs ten months back to reach January of the same year.
	_, err := svc.MonthlyReport(context.Background(), 2026, 11)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.windowMonthsBack)

	// March is covered by the six-month analysis window alone.
	_, err = svc.MonthlyReport(context.Background(), 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, repo.windowMonthsBack)
}

func TestMonthlyReportUsesSettings(t *testing.T) {
	repo := &fakeRepo{
		txs: []core.Transaction{
			tx(2026, 3, 1, "salary", 10_000_000, core.Income),
			tx(2026, 3, 5, "rent", 9_500_000, core.Expense),
		},
		settings: &core.AppSettings{
			SavingsGoals: core.SavingsGoals{MonthlyTarget: 300_000},
		},
	}
	svc := NewReportService(repo, nil, 6, 12)

	report, err := svc.MonthlyReport(context.Background(), 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), report.Savings.MonthlyTarget)
	assert.True(t, report.Savings.OnTrack)
}

func TestWarningsPublishesCriticalOnly(t *testing.T) {
	repo := &fakeRepo{
		txs: []core.Transaction{
			// 60% over the groceries ceiling: critical.
			tx(2026, 3, 3, "groceries", 9_600_000, core.Expense),
			// 10% over the dining ceiling: plain warning.
			tx(2026, 3, 4, "dining", 3_300_000, core.Expense),
		},
	}
	pub := &fakePublisher{}
	svc := NewReportService(repo, pub, 6, 12)
	svc.now = func() time.Time { return time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC) }

	warnings, err := svc.Warnings(context.Background(), 2026, 3)
	require.NoError(t, err)
	require.NotEmpty(t, warnings)

	require.Len(t, pub.published, 1)
	msg := pub.published[0]
	assert.Equal(t, "monthly-groceries", msg.WarningID)
	assert.Equal(t, analysis.SeverityCritical, msg.Severity)
	assert.Equal(t, 2026, msg.Year)
	assert.Equal(t, 3, msg.Month)
}

func TestWarningsSurviveBrokerFailure(t *testing.T) {
	repo := &fakeRepo{
		txs: []core.Transaction{tx(2026, 3, 3, "groceries", 9_600_000, core.Expense)},
	}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewReportService(repo, pub, 6, 12)
	svc.now = func() time.Time { return time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC) }

	warnings, err := svc.Warnings(context.Background(), 2026, 3)
	require.NoError(t, err, "alerting is best effort")
	assert.NotEmpty(t, warnings)
}

func TestProjectionStartsAtCurrentMonth(t *testing.T) {
	repo := &fakeRepo{
		balance: 1_000_000,
		planned: []core.PlannedTransaction{{
			Title: "rent", Amount: 200_000, PlannedDate: core.NewDate(2026, 1, 1),
			Type: core.Expense, Category: "rent", Recurrence: core.Monthly, Active: true,
		}},
	}
	svc := NewReportService(repo, nil, 6, 12)
	svc.now = func() time.Time { return time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC) }

	points, err := svc.Projection(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "2026-04", points[0].Label)
	assert.Equal(t, int64(800_000), points[0].Balance)

	// Zero months falls back to the configured horizon.
	points, err = svc.Projection(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, points, 12)
}

func TestHealthScorePassesLoanBook(t *testing.T) {
	repo := &fakeRepo{
		txs:   []core.Transaction{tx(2026, 3, 1, "salary", 10_000_000, core.Income)},
		loans: []core.Loan{{ID: 1, Title: "loan", Amount: 5_000_000, Date: core.NewDate(2026, 1, 1), Type: core.Borrowing}},
		paid:  map[int64]int64{1: 5_000_000},
	}
	svc := NewReportService(repo, nil, 6, 12)

	hs, err := svc.HealthScore(context.Background(), 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, hs.DebtBurden, "fully repaid loan carries no burden")
}

func TestThresholdsPropagatesError(t *testing.T) {
	repo := &fakeRepo{failSettings: true}
	svc := NewReportService(repo, nil, 6, 12)

	_, err := svc.Thresholds(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")
}
