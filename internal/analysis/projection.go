package analysis

import (
	"fmt"

	"finhealth/internal/core"
)

// FutureBalancePoint is one month of the projected balance series. Income and
// expense are summed separately so callers can render stacked bars next to
// the net balance line.
type FutureBalancePoint struct {
	Label   string
	Year    int
	Month   int
	Income  int64
	Expense int64
	Net     int64
	Balance int64
}

// ComputeFutureBalance projects the running balance month by month over the
// given horizon, starting at (startYear, startMonth), which callers set to
// the current calendar month. Inactive planned items are skipped. A negative
// running balance is a signal to surface, not an error.
//
// Recurrence applicability per point:
//   - once: only the exact planned year and month
//   - monthly: every month from the planned month onward
//   - yearly: the planned calendar month of every year from the planned year
func ComputeFutureBalance(currentBalance int64, items []core.PlannedTransaction, months, startYear, startMonth int) []FutureBalancePoint {
	points := make([]FutureBalancePoint, 0, months)
	balance := currentBalance

	start := monthIndex(startYear, startMonth)
	for i := 0; i < months; i++ {
		year, month := monthFromIndex(start + i)

		var income, expense int64
		for _, item := range items {
			if !item.Active || !applies(item, year, month) {
				continue
			}
			if item.Type == core.Income {
				income += item.Amount
			} else {
				expense += item.Amount
			}
		}

		net := income - expense
		balance += net
		points = append(points, FutureBalancePoint{
			Label:   fmt.Sprintf("%04d-%02d", year, month),
			Year:    year,
			Month:   month,
			Income:  income,
			Expense: expense,
			Net:     net,
			Balance: balance,
		})
	}
	return points
}

func applies(item core.PlannedTransaction, year, month int) bool {
	plannedYear := item.PlannedDate.Year()
	plannedMonth := int(item.PlannedDate.Month())

	switch item.Recurrence {
	case core.Once:
		return year == plannedYear && month == plannedMonth
	case core.Monthly:
		return monthIndex(year, month) >= monthIndex(plannedYear, plannedMonth)
	case core.Yearly:
		return month == plannedMonth && year >= plannedYear
	default:
		return false
	}
}
