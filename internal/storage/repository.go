package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finhealth/internal/core"

	_ "modernc.org/sqlite"
)

const dateFormat = "2006-01-02"

var (
	ErrNotFound    = errors.New("not found")
	ErrOverpayment = errors.New("payment exceeds remaining loan amount")
)

// SQLiteRepository persists the transaction ledger, the loan book, planned
// cash flows and the settings row. All writes normalize derived fields before
// they hit a statement so the database never carries stale values.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateTransaction validates, normalizes and inserts a transaction,
// returning it with the assigned ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t.Normalize()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(date, title, amount, type, category, category_group, special_tag,
			 baseline_excluded, year, month, day_of_week)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date.Format(dateFormat), t.Title, t.Amount, string(t.Type),
		t.Category, t.CategoryGroup, t.SpecialTag,
		boolToInt(t.BaselineExcluded), t.Year, t.Month, t.DayOfWeek)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID, "title", t.Title, "amount", t.Amount, "type", t.Type)
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactionsWindow returns every transaction from `monthsBack` months
// before (year, month) through the end of that month, ordered by date.
func (r *SQLiteRepository) ListTransactionsWindow(ctx context.Context, year, month, monthsBack int) ([]core.Transaction, error) {
	fromIdx := year*12 + month - 1 - monthsBack
	fromYear, fromMonth := fromIdx/12, fromIdx%12+1

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, title, amount, type, category, category_group,
		       special_tag, baseline_excluded, year, month, day_of_week
		FROM transactions
		WHERE (year * 12 + month) >= (? * 12 + ?)
		  AND (year * 12 + month) <= (? * 12 + ?)
		ORDER BY date, id`,
		fromYear, fromMonth, year, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactionsYear returns every transaction of one calendar year.
func (r *SQLiteRepository) ListTransactionsYear(ctx context.Context, year int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, title, amount, type, category, category_group,
		       special_tag, baseline_excluded, year, month, day_of_week
		FROM transactions WHERE year = ? ORDER BY date, id`, year)
	if err != nil {
		return nil, fmt.Errorf("list transactions by year: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var t core.Transaction
	var date string
	var excluded int
	if err := rows.Scan(&t.ID, &date, &t.Title, &t.Amount, &t.Type, &t.Category,
		&t.CategoryGroup, &t.SpecialTag, &excluded, &t.Year, &t.Month, &t.DayOfWeek); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	parsed, err := time.Parse(dateFormat, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date, err)
	}
	t.Date = parsed
	t.BaselineExcluded = excluded != 0
	return t, nil
}

// TotalBalance is the lifetime sum of signed transaction amounts.
func (r *SQLiteRepository) TotalBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END), 0)
		FROM transactions`).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("total balance: %w", err)
	}
	return balance, nil
}

func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	if err := l.Validate(); err != nil {
		return core.Loan{}, err
	}
	l.Normalize()
	l.Status = core.Outstanding

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO loans
			(title, amount, date, type, status, counterparty, related_tags,
			 original_category, baseline_excluded, year, month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Title, l.Amount, l.Date.Format(dateFormat), string(l.Type), string(l.Status),
		l.Counterparty, l.RelatedTags, l.OriginalCategory,
		boolToInt(l.BaselineExcluded), l.Year, l.Month)
	if err != nil {
		return core.Loan{}, fmt.Errorf("insert loan: %w", err)
	}
	l.ID, err = res.LastInsertId()
	if err != nil {
		return core.Loan{}, fmt.Errorf("loan id: %w", err)
	}

	slog.InfoContext(ctx, "Loan saved", "id", l.ID, "title", l.Title, "type", l.Type)
	return l, nil
}

func (r *SQLiteRepository) ListLoans(ctx context.Context) ([]core.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, amount, date, type, status, counterparty,
		       related_tags, original_category, baseline_excluded, year, month
		FROM loans ORDER BY date, id`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		var l core.Loan
		var date string
		var excluded int
		if err := rows.Scan(&l.ID, &l.Title, &l.Amount, &date, &l.Type, &l.Status,
			&l.Counterparty, &l.RelatedTags, &l.OriginalCategory, &excluded,
			&l.Year, &l.Month); err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		parsed, err := time.Parse(dateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parse loan date %q: %w", date, err)
		}
		l.Date = parsed
		l.BaselineExcluded = excluded != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// LoanPaidTotals maps loan ID to the sum of its payments.
func (r *SQLiteRepository) LoanPaidTotals(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT loan_id, COALESCE(SUM(amount), 0) FROM payments GROUP BY loan_id`)
	if err != nil {
		return nil, fmt.Errorf("loan paid totals: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var id, total int64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scan paid total: %w", err)
		}
		out[id] = total
	}
	return out, rows.Err()
}

// CreatePayment inserts a payment and recomputes the owning loan's status
// from the new payment sum.
func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Payment{}, fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	var loanAmount int64
	err = tx.QueryRowContext(ctx, `SELECT amount FROM loans WHERE id = ?`, p.LoanID).Scan(&loanAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Payment{}, ErrNotFound
	}
	if err != nil {
		return core.Payment{}, fmt.Errorf("load loan: %w", err)
	}

	var alreadyPaid int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE loan_id = ?`, p.LoanID).Scan(&alreadyPaid)
	if err != nil {
		return core.Payment{}, fmt.Errorf("sum payments: %w", err)
	}
	if p.Amount > loanAmount-alreadyPaid {
		return core.Payment{}, ErrOverpayment
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO payments (loan_id, amount, date, note) VALUES (?, ?, ?, ?)`,
		p.LoanID, p.Amount, p.Date.Format(dateFormat), p.Note)
	if err != nil {
		return core.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.Payment{}, fmt.Errorf("payment id: %w", err)
	}

	if err := r.recomputeLoanStatus(ctx, tx, p.LoanID, loanAmount); err != nil {
		return core.Payment{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Payment{}, fmt.Errorf("commit payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved", "id", p.ID, "loan_id", p.LoanID, "amount", p.Amount)
	return p, nil
}

// DeletePayment removes a payment and recomputes the loan's status, which can
// move it back from paid to partial or outstanding.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	var loanID, loanAmount int64
	err = tx.QueryRowContext(ctx, `
		SELECT p.loan_id, l.amount FROM payments p JOIN loans l ON l.id = p.loan_id
		WHERE p.id = ?`, id).Scan(&loanID, &loanAmount)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if err := r.recomputeLoanStatus(ctx, tx, loanID, loanAmount); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) recomputeLoanStatus(ctx context.Context, tx *sql.Tx, loanID, loanAmount int64) error {
	var paid int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE loan_id = ?`, loanID).Scan(&paid)
	if err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}

	status := core.Loan{Amount: loanAmount}.StatusFor(paid)
	if _, err := tx.ExecContext(ctx, `UPDATE loans SET status = ? WHERE id = ?`,
		string(status), loanID); err != nil {
		return fmt.Errorf("update loan status: %w", err)
	}
	return nil
}

// MarkLoanPaid force-sets a loan to paid regardless of the payment sum.
func (r *SQLiteRepository) MarkLoanPaid(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE loans SET status = 'paid' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark loan paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLoan removes a loan; payments go with it via the cascade.
func (r *SQLiteRepository) DeleteLoan(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreatePlannedTransaction(ctx context.Context, p core.PlannedTransaction) (core.PlannedTransaction, error) {
	if err := p.Validate(); err != nil {
		return core.PlannedTransaction{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO planned_transactions
			(title, amount, planned_date, type, category, recurrence, active, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Amount, p.PlannedDate.Format(dateFormat), string(p.Type),
		p.Category, string(p.Recurrence), boolToInt(p.Active), p.Note)
	if err != nil {
		return core.PlannedTransaction{}, fmt.Errorf("insert planned transaction: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.PlannedTransaction{}, fmt.Errorf("planned transaction id: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPlannedTransactions(ctx context.Context, activeOnly bool) ([]core.PlannedTransaction, error) {
	query := `
		SELECT id, title, amount, planned_date, type, category, recurrence, active, note
		FROM planned_transactions`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY planned_date, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list planned transactions: %w", err)
	}
	defer rows.Close()

	var out []core.PlannedTransaction
	for rows.Next() {
		var p core.PlannedTransaction
		var date string
		var active int
		if err := rows.Scan(&p.ID, &p.Title, &p.Amount, &date, &p.Type,
			&p.Category, &p.Recurrence, &active, &p.Note); err != nil {
			return nil, fmt.Errorf("scan planned transaction: %w", err)
		}
		parsed, err := time.Parse(dateFormat, date)
		if err != nil {
			return nil, fmt.Errorf("parse planned date %q: %w", date, err)
		}
		p.PlannedDate = parsed
		p.Active = active != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SetPlannedTransactionActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE planned_transactions SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update planned transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSettings loads the single settings row. No row yet means defaults, so a
// nil settings pointer is returned without error.
func (r *SQLiteRepository) GetSettings(ctx context.Context) (*core.AppSettings, error) {
	var s core.AppSettings
	var limitsJSON string
	var weekly, monthly sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT savings_monthly_target, savings_yearly_target, savings_notes,
		       category_limits, weekly_total_limit, monthly_total_limit
		FROM app_settings WHERE id = 1`).Scan(
		&s.SavingsGoals.MonthlyTarget, &s.SavingsGoals.YearlyTarget,
		&s.SavingsGoals.Notes, &limitsJSON, &weekly, &monthly)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if err := json.Unmarshal([]byte(limitsJSON), &s.CategoryLimits); err != nil {
		return nil, fmt.Errorf("decode category limits: %w", err)
	}
	if weekly.Valid {
		s.TotalLimits.WeeklyTotal = &weekly.Int64
	}
	if monthly.Valid {
		s.TotalLimits.MonthlyTotal = &monthly.Int64
	}
	return &s, nil
}

// SaveSettings upserts the single settings row.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, s core.AppSettings) error {
	limitsJSON, err := json.Marshal(s.CategoryLimits)
	if err != nil {
		return fmt.Errorf("encode category limits: %w", err)
	}

	var weekly, monthly sql.NullInt64
	if s.TotalLimits.WeeklyTotal != nil {
		weekly = sql.NullInt64{Int64: *s.TotalLimits.WeeklyTotal, Valid: true}
	}
	if s.TotalLimits.MonthlyTotal != nil {
		monthly = sql.NullInt64{Int64: *s.TotalLimits.MonthlyTotal, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO app_settings
			(id, savings_monthly_target, savings_yearly_target, savings_notes,
			 category_limits, weekly_total_limit, monthly_total_limit)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			savings_monthly_target = excluded.savings_monthly_target,
			savings_yearly_target = excluded.savings_yearly_target,
			savings_notes = excluded.savings_notes,
			category_limits = excluded.category_limits,
			weekly_total_limit = excluded.weekly_total_limit,
			monthly_total_limit = excluded.monthly_total_limit`,
		s.SavingsGoals.MonthlyTarget, s.SavingsGoals.YearlyTarget,
		s.SavingsGoals.Notes, string(limitsJSON), weekly, monthly)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
