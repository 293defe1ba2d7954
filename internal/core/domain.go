package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Borrowing LoanType = "borrowing"
	Lending   LoanType = "lending"

	Outstanding LoanStatus = "outstanding"
	Partial     LoanStatus = "partial"
	Paid        LoanStatus = "paid"

	Once    Recurrence = "once"
	Monthly Recurrence = "monthly"
	Yearly  Recurrence = "yearly"
)

// BaselineExcludeTag marks one-off large transactions that must not feed
// "normal" spending baselines (historical averages, anomaly statistics).
const BaselineExcludeTag = "BigY"

type (
	TransactionType string
	LoanType        string
	LoanStatus      string
	Recurrence      string

	// Transaction is a single classified income or expense record.
	// Amount is a positive integer in whole currency units; the sign of the
	// cash-flow effect comes from Type via BudgetImpact. Year, Month and
	// DayOfWeek are derived from Date and never trusted from caller input.
	Transaction struct {
		ID               int64
		Date             time.Time
		Title            string
		Amount           int64
		Type             TransactionType
		Category         string
		CategoryGroup    string
		SpecialTag       string
		BaselineExcluded bool
		Year             int
		Month            int
		DayOfWeek        string
	}

	// Loan tracks money borrowed from or lent to a counterparty. Status is
	// derived from the payment sum and only recomputed, never set directly,
	// except through the explicit mark-fully-paid operation.
	Loan struct {
		ID               int64
		Title            string
		Amount           int64
		Date             time.Time
		Type             LoanType
		Status           LoanStatus
		Counterparty     string
		RelatedTags      string
		OriginalCategory string
		BaselineExcluded bool
		Year             int
		Month            int
	}

	// Payment is owned by exactly one Loan and is cascade-deleted with it.
	Payment struct {
		ID     int64
		LoanID int64
		Amount int64
		Date   time.Time
		Note   string
	}

	// PlannedTransaction is a future cash flow used by the balance projector.
	// Inactive items are excluded from projections.
	PlannedTransaction struct {
		ID          int64
		Title       string
		Amount      int64
		PlannedDate time.Time
		Type        TransactionType
		Category    string
		Recurrence  Recurrence
		Active      bool
		Note        string
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidLoanType = errors.New("invalid loan type")
	ErrInvalidRecur    = errors.New("invalid recurrence")
	ErrEmptyTitle      = errors.New("empty title")
	ErrTitleTooLong    = errors.New("title too long (max 200 characters)")
	ErrEmptyCategory   = errors.New("empty category")
	ErrZeroDate        = errors.New("date cannot be zero")
)

// Normalize recomputes every derived field from Date and SpecialTag.
// Called on create and update so callers can never smuggle in stale values.
func (t *Transaction) Normalize() {
	t.Year = t.Date.Year()
	t.Month = int(t.Date.Month())
	t.DayOfWeek = t.Date.Weekday().String()
	t.BaselineExcluded = t.SpecialTag == BaselineExcludeTag
}

// BudgetImpact returns the signed cash-flow effect of the transaction:
// +Amount for income, -Amount for expense.
func (t Transaction) BudgetImpact() int64 {
	if t.Type == Income {
		return t.Amount
	}
	return -t.Amount
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return ErrTitleTooLong
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	switch t.Type {
	case Income, Expense:
	default:
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Normalize recomputes the loan's derived fields from Date and RelatedTags.
func (l *Loan) Normalize() {
	l.Year = l.Date.Year()
	l.Month = int(l.Date.Month())
	l.BaselineExcluded = strings.Contains(l.RelatedTags, BaselineExcludeTag)
}

// StatusFor derives the loan status from the total paid so far.
func (l Loan) StatusFor(paid int64) LoanStatus {
	switch {
	case paid >= l.Amount:
		return Paid
	case paid > 0:
		return Partial
	default:
		return Outstanding
	}
}

// Remaining returns the unpaid balance, never negative.
func (l Loan) Remaining(paid int64) int64 {
	if paid >= l.Amount {
		return 0
	}
	return l.Amount - paid
}

func (l Loan) Validate() error {
	if l.Date.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(l.Title)) == 0 {
		return ErrEmptyTitle
	}
	if l.Amount <= 0 {
		return ErrInvalidAmount
	}
	switch l.Type {
	case Borrowing, Lending:
	default:
		return ErrInvalidLoanType
	}
	return nil
}

func (p Payment) Validate() error {
	if p.LoanID <= 0 {
		return errors.New("payment must reference a loan")
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (p PlannedTransaction) Validate() error {
	if p.PlannedDate.IsZero() {
		return ErrZeroDate
	}
	if len(strings.TrimSpace(p.Title)) == 0 {
		return ErrEmptyTitle
	}
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	switch p.Type {
	case Income, Expense:
	default:
		return ErrInvalidType
	}
	switch p.Recurrence {
	case Once, Monthly, Yearly:
	default:
		return ErrInvalidRecur
	}
	return nil
}

// NewDate builds a calendar date at UTC midnight. Time of day carries no
// meaning for month/year bucketing anywhere in the application.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
