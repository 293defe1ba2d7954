// Package analysis contains the report-generation engine: pure, stateless
// computations that turn an in-memory window of transaction and loan records
// into derived financial insights (health scoring, spending warnings, the
// monthly report, future-balance projection).
//
// Every function is referentially transparent given its inputs. Amounts are
// int64 in whole currency units; float64 appears only in ratios, rates and
// statistics. Transactions flagged BaselineExcluded are skipped by every
// baseline statistic.
package analysis

import (
	"math"
	"time"

	"finhealth/internal/core"
)

// monthIndex flattens (year, month) into a single comparable integer so that
// month arithmetic never has to special-case year boundaries.
func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func monthFromIndex(idx int) (year, month int) {
	return idx / 12, idx%12 + 1
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// inBaseline reports whether a transaction participates in baseline
// statistics (averages, anomaly history, threshold comparisons).
func inBaseline(t core.Transaction) bool {
	return !t.BaselineExcluded
}

// monthTotals sums baseline income and expense for one calendar month.
func monthTotals(txs []core.Transaction, year, month int) (income, expense int64) {
	for _, t := range txs {
		if t.Year != year || t.Month != month || !inBaseline(t) {
			continue
		}
		if t.Type == core.Income {
			income += t.Amount
		} else {
			expense += t.Amount
		}
	}
	return income, expense
}

// expenseByCategory groups baseline expense amounts of one month by category.
func expenseByCategory(txs []core.Transaction, year, month int) map[string]int64 {
	out := make(map[string]int64)
	for _, t := range txs {
		if t.Year == year && t.Month == month && t.Type == core.Expense && inBaseline(t) {
			out[t.Category] += t.Amount
		}
	}
	return out
}

// categoryHistory builds per-category expense totals for the `back` months
// preceding (year, month), oldest first, zero-filled from the first month a
// category appears. Categories present only in the current month get an
// empty history slice.
func categoryHistory(txs []core.Transaction, year, month, back int) map[string][]int64 {
	target := monthIndex(year, month)
	first := target - back

	// Raw totals per category per month in the window.
	totals := make(map[string]map[int]int64)
	for _, t := range txs {
		if t.Type != core.Expense || !inBaseline(t) {
			continue
		}
		idx := monthIndex(t.Year, t.Month)
		if idx < first || idx >= target {
			continue
		}
		byMonth, ok := totals[t.Category]
		if !ok {
			byMonth = make(map[int]int64)
			totals[t.Category] = byMonth
		}
		byMonth[idx] += t.Amount
	}

	// Include categories that only appear in the current month.
	for _, t := range txs {
		if t.Type == core.Expense && inBaseline(t) && monthIndex(t.Year, t.Month) == target {
			if _, ok := totals[t.Category]; !ok {
				totals[t.Category] = make(map[int]int64)
			}
		}
	}

	out := make(map[string][]int64, len(totals))
	for cat, byMonth := range totals {
		// Zero-fill only from the first month the category has spend:
		// earlier zeros would dilute statistics for recently adopted
		// categories.
		firstSeen := -1
		for idx := first; idx < target; idx++ {
			if byMonth[idx] > 0 {
				firstSeen = idx
				break
			}
		}
		var series []int64
		if firstSeen >= 0 {
			series = make([]int64, 0, target-firstSeen)
			for idx := firstSeen; idx < target; idx++ {
				series = append(series, byMonth[idx])
			}
		}
		out[cat] = series
	}
	return out
}

// meanStddev returns the mean and population standard deviation of a series.
func meanStddev(values []int64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	mean = float64(sum) / float64(len(values))
	var varSum float64
	for _, v := range values {
		d := float64(v) - mean
		varSum += d * d
	}
	return mean, math.Sqrt(varSum / float64(len(values)))
}

// weekSpan is a Monday-aligned span clipped to the boundaries of one month.
type weekSpan struct {
	Start time.Time
	End   time.Time // inclusive
}

// monthWeeks partitions a month into calendar weeks: Monday-start, Sunday-end
// spans, with the first and last clipped to the month's first and last day.
func monthWeeks(year, month int) []weekSpan {
	start := core.NewDate(year, month, 1)
	end := core.NewDate(year, month, daysInMonth(year, month))

	var weeks []weekSpan
	cur := start
	for !cur.After(end) {
		// Days until the coming Sunday (Monday-start weeks).
		untilSunday := (7 - int(cur.Weekday())) % 7
		weekEnd := cur.AddDate(0, 0, untilSunday)
		if weekEnd.After(end) {
			weekEnd = end
		}
		weeks = append(weeks, weekSpan{Start: cur, End: weekEnd})
		cur = weekEnd.AddDate(0, 0, 1)
	}
	return weeks
}

// currentWeek returns the Monday-start, Sunday-end calendar week containing t.
func currentWeek(t time.Time) weekSpan {
	day := core.NewDate(t.Year(), int(t.Month()), t.Day())
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday)
	return weekSpan{Start: start, End: start.AddDate(0, 0, 6)}
}

func (w weekSpan) contains(d time.Time) bool {
	day := core.NewDate(d.Year(), int(d.Month()), d.Day())
	return !day.Before(w.Start) && !day.After(w.End)
}

// percentChange returns the relative change from prev to cur in percent.
// A zero base yields 0 rather than a division error.
func percentChange(cur, prev int64) float64 {
	if prev == 0 {
		return 0
	}
	return float64(cur-prev) / float64(prev) * 100
}
