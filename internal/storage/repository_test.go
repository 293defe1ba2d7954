package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finhealth/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	saved, err := repo.CreateTransaction(ctx, core.Transaction{
		Date:       core.NewDate(2026, 3, 11),
		Title:      "groceries run",
		Amount:     350_000,
		Type:       core.Expense,
		Category:   "groceries",
		SpecialTag: core.BaselineExcludeTag,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if saved.ID == 0 {
		t.Error("no ID assigned")
	}
	if saved.Year != 2026 || saved.Month != 3 || !saved.BaselineExcluded {
		t.Errorf("derived fields not normalized: %+v", saved)
	}

	txs, err := repo.ListTransactionsWindow(ctx, 2026, 3, 6)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	got := txs[0]
	if got.Title != "groceries run" || got.Amount != 350_000 || !got.BaselineExcluded {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Date.Equal(core.NewDate(2026, 3, 11)) {
		t.Errorf("date = %v, want 2026-03-11", got.Date)
	}
}

func TestTransactionValidationRejected(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.CreateTransaction(context.Background(), core.Transaction{
		Date:     core.NewDate(2026, 3, 11),
		Title:    "bad",
		Amount:   -5,
		Type:     core.Expense,
		Category: "misc",
	})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("error = %v, want ErrInvalidAmount", err)
	}
}

func TestListTransactionsWindowBounds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, d := range []struct{ y, m int }{
		{2025, 8}, {2025, 9}, {2026, 3}, {2026, 4},
	} {
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			Date:     core.NewDate(d.y, d.m, 15),
			Title:    "entry",
			Amount:   100,
			Type:     core.Expense,
			Category: "misc",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	// Six months back from March 2026 reaches September 2025.
	txs, err := repo.ListTransactionsWindow(ctx, 2026, 3, 6)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2 (Sep 2025 and Mar 2026)", len(txs))
	}
	if txs[0].Year != 2025 || txs[0].Month != 9 {
		t.Errorf("first = %d-%d, want 2025-9", txs[0].Year, txs[0].Month)
	}
}

func TestListTransactionsYear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, d := range []struct{ y, m int }{
		{2025, 12}, {2026, 1}, {2026, 7},
	} {
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			Date:     core.NewDate(d.y, d.m, 10),
			Title:    "entry",
			Amount:   100,
			Type:     core.Expense,
			Category: "misc",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	txs, err := repo.ListTransactionsYear(ctx, 2026)
	if err != nil {
		t.Fatalf("list year: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].Month != 1 || txs[1].Month != 7 {
		t.Errorf("months = %d, %d, want 1, 7", txs[0].Month, txs[1].Month)
	}
}

func TestTotalBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, e := range []struct {
		tt     core.TransactionType
		amount int64
	}{
		{core.Income, 1_000_000},
		{core.Expense, 300_000},
		{core.Expense, 200_000},
	} {
		_, err := repo.CreateTransaction(ctx, core.Transaction{
			Date:     core.NewDate(2026, 1, 10),
			Title:    "entry",
			Amount:   e.amount,
			Type:     e.tt,
			Category: "misc",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	balance, err := repo.TotalBalance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 500_000 {
		t.Errorf("balance = %d, want 500000", balance)
	}
}

func TestLoanPaymentStatusLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan, err := repo.CreateLoan(ctx, core.Loan{
		Title:  "bike loan",
		Amount: 1_000_000,
		Date:   core.NewDate(2026, 1, 5),
		Type:   core.Borrowing,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if loan.Status != core.Outstanding {
		t.Errorf("new loan status = %s, want outstanding", loan.Status)
	}

	pay := func(amount int64) core.Payment {
		t.Helper()
		p, err := repo.CreatePayment(ctx, core.Payment{
			LoanID: loan.ID,
			Amount: amount,
			Date:   core.NewDate(2026, 2, 1),
		})
		if err != nil {
			t.Fatalf("create payment: %v", err)
		}
		return p
	}

	status := func() core.LoanStatus {
		t.Helper()
		loans, err := repo.ListLoans(ctx)
		if err != nil || len(loans) != 1 {
			t.Fatalf("list loans: %v (%d)", err, len(loans))
		}
		return loans[0].Status
	}

	pay(400_000)
	if got := status(); got != core.Partial {
		t.Errorf("after partial payment status = %s, want partial", got)
	}

	final := pay(600_000)
	if got := status(); got != core.Paid {
		t.Errorf("after full payment status = %s, want paid", got)
	}

	totals, err := repo.LoanPaidTotals(ctx)
	if err != nil {
		t.Fatalf("paid totals: %v", err)
	}
	if totals[loan.ID] != 1_000_000 {
		t.Errorf("paid total = %d, want 1000000", totals[loan.ID])
	}

	// Removing the last payment regresses the status.
	if err := repo.DeletePayment(ctx, final.ID); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	if got := status(); got != core.Partial {
		t.Errorf("after delete status = %s, want partial", got)
	}
}

func TestPaymentCannotExceedRemaining(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan, err := repo.CreateLoan(ctx, core.Loan{
		Title: "loan", Amount: 1_000_000, Date: core.NewDate(2026, 1, 5), Type: core.Borrowing,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if _, err := repo.CreatePayment(ctx, core.Payment{
		LoanID: loan.ID, Amount: 700_000, Date: core.NewDate(2026, 2, 1),
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	_, err = repo.CreatePayment(ctx, core.Payment{
		LoanID: loan.ID, Amount: 400_000, Date: core.NewDate(2026, 3, 1),
	})
	if !errors.Is(err, ErrOverpayment) {
		t.Errorf("error = %v, want ErrOverpayment", err)
	}

	// Exactly the remaining amount is allowed.
	if _, err := repo.CreatePayment(ctx, core.Payment{
		LoanID: loan.ID, Amount: 300_000, Date: core.NewDate(2026, 3, 1),
	}); err != nil {
		t.Errorf("exact remaining payment rejected: %v", err)
	}
}

func TestPaymentRequiresLoan(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.CreatePayment(context.Background(), core.Payment{
		LoanID: 999,
		Amount: 100,
		Date:   core.NewDate(2026, 2, 1),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteLoanCascadesPayments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	loan, err := repo.CreateLoan(ctx, core.Loan{
		Title: "loan", Amount: 500, Date: core.NewDate(2026, 1, 5), Type: core.Lending,
	})
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	if _, err := repo.CreatePayment(ctx, core.Payment{
		LoanID: loan.ID, Amount: 100, Date: core.NewDate(2026, 2, 1),
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if err := repo.DeleteLoan(ctx, loan.ID); err != nil {
		t.Fatalf("delete loan: %v", err)
	}
	totals, err := repo.LoanPaidTotals(ctx)
	if err != nil {
		t.Fatalf("paid totals: %v", err)
	}
	if len(totals) != 0 {
		t.Errorf("payments survived loan deletion: %v", totals)
	}
}

func TestPlannedTransactionsActiveFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	active, err := repo.CreatePlannedTransaction(ctx, core.PlannedTransaction{
		Title: "rent", Amount: 3_000_000, PlannedDate: core.NewDate(2026, 4, 1),
		Type: core.Expense, Category: "rent", Recurrence: core.Monthly, Active: true,
	})
	if err != nil {
		t.Fatalf("create planned: %v", err)
	}
	if _, err := repo.CreatePlannedTransaction(ctx, core.PlannedTransaction{
		Title: "old gym", Amount: 100_000, PlannedDate: core.NewDate(2026, 1, 1),
		Type: core.Expense, Category: "fitness", Recurrence: core.Monthly, Active: false,
	}); err != nil {
		t.Fatalf("create planned: %v", err)
	}

	all, err := repo.ListPlannedTransactions(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d planned, want 2", len(all))
	}

	onlyActive, err := repo.ListPlannedTransactions(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(onlyActive) != 1 || onlyActive[0].Title != "rent" {
		t.Errorf("active filter returned %+v", onlyActive)
	}

	if err := repo.SetPlannedTransactionActive(ctx, active.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	onlyActive, err = repo.ListPlannedTransactions(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(onlyActive) != 0 {
		t.Errorf("got %d active planned, want 0", len(onlyActive))
	}
}

func TestSettingsUpsertRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil settings before first save, got %+v", got)
	}

	monthly := int64(4_000_000)
	weeklyTotal := int64(2_000_000)
	want := core.AppSettings{
		SavingsGoals: core.SavingsGoals{MonthlyTarget: 1_500_000, Notes: "house fund"},
		CategoryLimits: map[string]core.CategoryLimit{
			"groceries": {Monthly: &monthly},
		},
		TotalLimits: core.TotalLimits{WeeklyTotal: &weeklyTotal},
	}
	if err := repo.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	got, err = repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got == nil {
		t.Fatal("settings missing after save")
	}
	if got.SavingsGoals.MonthlyTarget != 1_500_000 || got.SavingsGoals.Notes != "house fund" {
		t.Errorf("savings goals = %+v", got.SavingsGoals)
	}
	if lim := got.CategoryLimits["groceries"]; lim.Monthly == nil || *lim.Monthly != 4_000_000 {
		t.Errorf("category limits = %+v", got.CategoryLimits)
	}
	if got.TotalLimits.WeeklyTotal == nil || *got.TotalLimits.WeeklyTotal != 2_000_000 {
		t.Errorf("total limits = %+v", got.TotalLimits)
	}
	if got.TotalLimits.MonthlyTotal != nil {
		t.Error("monthly total should stay unset")
	}

	// Second save overwrites the single row.
	want.SavingsGoals.MonthlyTarget = 2_000_000
	if err := repo.SaveSettings(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.SavingsGoals.MonthlyTarget != 2_000_000 {
		t.Errorf("target after upsert = %d, want 2000000", got.SavingsGoals.MonthlyTarget)
	}
}
