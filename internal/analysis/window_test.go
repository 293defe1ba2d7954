package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhealth/internal/core"
)

// expTx builds a normalized baseline expense for tests.
func expTx(y, m, d int, category string, amount int64) core.Transaction {
	t := core.Transaction{
		Date:     core.NewDate(y, m, d),
		Title:    category + " purchase",
		Amount:   amount,
		Type:     core.Expense,
		Category: category,
	}
	t.Normalize()
	return t
}

func incTx(y, m, d int, amount int64) core.Transaction {
	t := core.Transaction{
		Date:     core.NewDate(y, m, d),
		Title:    "salary",
		Amount:   amount,
		Type:     core.Income,
		Category: "salary",
	}
	t.Normalize()
	return t
}

// bigTx builds an expense carrying the baseline-exclusion tag.
func bigTx(y, m, d int, category string, amount int64) core.Transaction {
	t := expTx(y, m, d, category, amount)
	t.SpecialTag = core.BaselineExcludeTag
	t.Normalize()
	return t
}

func TestMonthIndexRoundTrip(t *testing.T) {
	for _, tc := range []struct{ year, month int }{
		{2026, 1}, {2026, 12}, {2025, 12}, {2027, 1}, {2000, 6},
	} {
		y, m := monthFromIndex(monthIndex(tc.year, tc.month))
		assert.Equal(t, tc.year, y)
		assert.Equal(t, tc.month, m)
	}
	assert.Equal(t, 1, monthIndex(2026, 1)-monthIndex(2025, 12), "year boundary is one step")
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, daysInMonth(2026, 1))
	assert.Equal(t, 28, daysInMonth(2026, 2))
	assert.Equal(t, 29, daysInMonth(2024, 2))
	assert.Equal(t, 30, daysInMonth(2026, 4))
}

func TestMonthWeeksClipsToMonth(t *testing.T) {
	// August 2026 starts on a Saturday and ends on a Monday.
	weeks := monthWeeks(2026, 8)
	require.Len(t, weeks, 6)

	assert.Equal(t, core.NewDate(2026, 8, 1), weeks[0].Start)
	assert.Equal(t, core.NewDate(2026, 8, 2), weeks[0].End, "first week clipped at Sunday the 2nd")
	assert.Equal(t, core.NewDate(2026, 8, 3), weeks[1].Start)
	assert.Equal(t, core.NewDate(2026, 8, 9), weeks[1].End)
	assert.Equal(t, core.NewDate(2026, 8, 31), weeks[5].Start)
	assert.Equal(t, core.NewDate(2026, 8, 31), weeks[5].End, "last week is the trailing Monday alone")

	// Contiguous cover of the month.
	for i := 1; i < len(weeks); i++ {
		assert.Equal(t, weeks[i-1].End.AddDate(0, 0, 1), weeks[i].Start)
	}
}

func TestCurrentWeek(t *testing.T) {
	// 2026-03-11 is a Wednesday.
	w := currentWeek(time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, core.NewDate(2026, 3, 9), w.Start)
	assert.Equal(t, core.NewDate(2026, 3, 15), w.End)

	// A Monday starts its own week, a Sunday closes the previous one.
	assert.Equal(t, core.NewDate(2026, 3, 9), currentWeek(core.NewDate(2026, 3, 9)).Start)
	assert.Equal(t, core.NewDate(2026, 3, 9), currentWeek(core.NewDate(2026, 3, 15)).Start)

	assert.True(t, w.contains(core.NewDate(2026, 3, 9)))
	assert.True(t, w.contains(core.NewDate(2026, 3, 15)))
	assert.False(t, w.contains(core.NewDate(2026, 3, 8)))
	assert.False(t, w.contains(core.NewDate(2026, 3, 16)))
}

func TestMonthTotalsSkipsExcluded(t *testing.T) {
	txs := []core.Transaction{
		incTx(2026, 3, 1, 1_000_000),
		expTx(2026, 3, 5, "groceries", 300_000),
		bigTx(2026, 3, 6, "travel", 5_000_000),
		expTx(2026, 2, 5, "groceries", 999_999), // other month
	}
	income, expense := monthTotals(txs, 2026, 3)
	assert.Equal(t, int64(1_000_000), income)
	assert.Equal(t, int64(300_000), expense)
}

func TestCategoryHistoryZeroFillsFromFirstAppearance(t *testing.T) {
	txs := []core.Transaction{
		expTx(2025, 12, 10, "fitness", 100_000),
		expTx(2026, 2, 10, "fitness", 200_000),
		expTx(2026, 4, 1, "pets", 50_000), // current month only
	}
	history := categoryHistory(txs, 2026, 4, 6)

	require.Contains(t, history, "fitness")
	assert.Equal(t, []int64{100_000, 0, 200_000, 0}, history["fitness"],
		"zero-filled from December through March, not from the window start")

	require.Contains(t, history, "pets")
	assert.Empty(t, history["pets"], "no history before the current month")
}

func TestMeanStddev(t *testing.T) {
	mean, stddev := meanStddev([]int64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stddev, 1e-9)

	mean, stddev = meanStddev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)

	_, stddev = meanStddev([]int64{300, 300, 300})
	assert.Zero(t, stddev)
}

func TestPercentChange(t *testing.T) {
	assert.InDelta(t, 50.0, percentChange(150, 100), 1e-9)
	assert.InDelta(t, -50.0, percentChange(50, 100), 1e-9)
	assert.Zero(t, percentChange(123, 0), "zero base never divides")
}
