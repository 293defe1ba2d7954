package analysis

import (
	"fmt"
	"sort"
	"time"

	"finhealth/internal/core"
)

type (
	// MonthlyReport is the composite analytical report for one target month.
	// It is always complete and well-typed: empty slices and zero values
	// stand in for missing data, never errors.
	MonthlyReport struct {
		Year          int
		Month         int
		Summary       MonthSummary
		Weekly        []WeekComparison
		LargeExpenses []LargeExpense
		OverBudget    []OverBudgetCategory
		Anomalies     []Anomaly
		Trends        []CategoryTrend
		Savings       SavingsAnalysis
		Suggestions   []Suggestion
	}

	// MonthSummary compares the target month against the previous one.
	MonthSummary struct {
		TotalIncome      int64
		TotalExpense     int64
		Net              int64
		SavingsRate      float64
		PrevIncome       int64
		PrevExpense      int64
		PrevNet          int64
		IncomeChangePct  float64
		ExpenseChangePct float64
		AvgDailyExpense  int64
	}

	// WeekComparison covers one Monday-aligned calendar week clipped to the
	// month, measured against the weekly total budget.
	WeekComparison struct {
		Index              int
		Start              time.Time
		End                time.Time
		Income             int64
		Expense            int64
		TopCategory        string
		TransactionCount   int
		AvgDailySpend      int64
		BudgetDeviationPct float64
	}

	// LargeExpense is a single transaction flagged as unusually big, either
	// by share of the month's spending or statistically against its
	// category's six-month history.
	LargeExpense struct {
		TransactionID int64
		Title         string
		Category      string
		Amount        int64
		Date          time.Time
		Anomalous     bool
		Reason        string
	}

	OverBudgetCategory struct {
		Category      string
		Limit         int64
		Actual        int64
		OverAmount    int64
		OverPct       float64
		Severity      string
		WeeklyOverage int64
	}

	// Anomaly is a category whose target-month total deviates from its
	// zero-filled six-month history by z-score.
	Anomaly struct {
		Category       string
		CurrentAmount  int64
		HistoricalMean float64
		StdDev         float64
		ZScore         float64
		Severity       string
	}

	CategoryTrend struct {
		Category      string
		Direction     string
		ChangePct     float64
		CurrentAmount int64
	}

	SavingsAnalysis struct {
		CurrentRate      float64
		TargetRate       float64
		MonthlyTarget    int64
		ActualSaved      int64
		Gap              int64
		YearlyProjection int64
		BestMonth        int
		BestRate         float64
		WorstMonth       int
		WorstRate        float64
		OnTrack          bool
	}

	Suggestion struct {
		Priority string
		Type     string
		Title    string
		Message  string
	}
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	AnomalyMild     = "mild"
	AnomalyModerate = "moderate"
	AnomalySevere   = "severe"

	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

const (
	// largeExpenseFloor keeps the large-expense threshold from collapsing in
	// low-spend months: a transaction counts as large at
	// max(5% of the month's expense, this floor).
	largeExpenseFloor int64 = 500_000
	largeExpenseShare       = 0.05

	historyMonths     = 6
	trendChangePct    = 15.0
	maxLargeExpenses  = 15
	maxTrendedReports = 15

	// The target savings rate is fixed at 20%; custom savings goals only set
	// the absolute monthly target amount, not the rate.
	defaultTargetSavingsRate = 20.0
)

// GenerateMonthlyReport builds the full analytical report for (year, month).
// The transaction window should span the target month plus the six prior
// months, which feed trend and anomaly baselines. settings may be nil.
//
// The output depends only on the inputs: two calls over the same snapshot
// produce identical reports.
func GenerateMonthlyReport(txs []core.Transaction, year, month int, settings *core.AppSettings) MonthlyReport {
	thresholds := ResolveThresholds(settings)

	report := MonthlyReport{
		Year:          year,
		Month:         month,
		Summary:       buildSummary(txs, year, month),
		Weekly:        buildWeeklyComparison(txs, year, month, thresholds.WeeklyTotal),
		LargeExpenses: findLargeExpenses(txs, year, month),
		OverBudget:    findOverBudget(txs, year, month, thresholds),
		Anomalies:     detectAnomalies(txs, year, month),
		Trends:        buildTrends(txs, year, month),
		Savings:       buildSavingsAnalysis(txs, year, month, settings),
	}
	report.Suggestions = buildSuggestions(report)
	return report
}

// fullMonthTotals sums income and expense for a month including
// baseline-excluded transactions: the summary reports facts, only the
// statistical baselines skip one-offs.
func fullMonthTotals(txs []core.Transaction, year, month int) (income, expense int64) {
	for _, t := range txs {
		if t.Year != year || t.Month != month {
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

func buildSummary(txs []core.Transaction, year, month int) MonthSummary {
	prevYear, prevMonth := monthFromIndex(monthIndex(year, month) - 1)

	income, expense := fullMonthTotals(txs, year, month)
	prevIncome, prevExpense := fullMonthTotals(txs, prevYear, prevMonth)

	s := MonthSummary{
		TotalIncome:      income,
		TotalExpense:     expense,
		Net:              income - expense,
		PrevIncome:       prevIncome,
		PrevExpense:      prevExpense,
		PrevNet:          prevIncome - prevExpense,
		IncomeChangePct:  percentChange(income, prevIncome),
		ExpenseChangePct: percentChange(expense, prevExpense),
		AvgDailyExpense:  expense / int64(daysInMonth(year, month)),
	}
	if income > 0 {
		s.SavingsRate = float64(s.Net) / float64(income) * 100
	}
	return s
}

func buildWeeklyComparison(txs []core.Transaction, year, month int, weeklyBudget int64) []WeekComparison {
	weeks := monthWeeks(year, month)
	out := make([]WeekComparison, 0, len(weeks))

	for i, span := range weeks {
		w := WeekComparison{Index: i + 1, Start: span.Start, End: span.End}
		byCat := make(map[string]int64)
		for _, t := range txs {
			if t.Year != year || t.Month != month || !span.contains(t.Date) {
				continue
			}
			w.TransactionCount++
			if t.Type == core.Income {
				w.Income += t.Amount
			} else {
				w.Expense += t.Amount
				byCat[t.Category] += t.Amount
			}
		}

		var topAmount int64
		for _, cat := range sortedKeys(byCat) {
			if byCat[cat] > topAmount {
				topAmount = byCat[cat]
				w.TopCategory = cat
			}
		}

		days := int64(span.End.Sub(span.Start).Hours()/24) + 1
		w.AvgDailySpend = w.Expense / days
		if weeklyBudget > 0 {
			w.BudgetDeviationPct = percentChange(w.Expense, weeklyBudget)
		}
		out = append(out, w)
	}
	return out
}

func findLargeExpenses(txs []core.Transaction, year, month int) []LargeExpense {
	_, monthExpense := fullMonthTotals(txs, year, month)
	if monthExpense == 0 {
		return nil
	}
	threshold := int64(float64(monthExpense) * largeExpenseShare)
	if threshold < largeExpenseFloor {
		threshold = largeExpenseFloor
	}

	// Per-category stats over individual baseline expense amounts in the six
	// months before the target month.
	target := monthIndex(year, month)
	historyAmounts := make(map[string][]int64)
	for _, t := range txs {
		if t.Type != core.Expense || !inBaseline(t) {
			continue
		}
		idx := monthIndex(t.Year, t.Month)
		if idx >= target-historyMonths && idx < target {
			historyAmounts[t.Category] = append(historyAmounts[t.Category], t.Amount)
		}
	}

	var out []LargeExpense
	for _, t := range txs {
		if t.Year != year || t.Month != month || t.Type != core.Expense || t.Amount < threshold {
			continue
		}

		anomalous := false
		if amounts := historyAmounts[t.Category]; len(amounts) >= 3 {
			mean, stddev := meanStddev(amounts)
			anomalous = float64(t.Amount) > mean+2*stddev
		}

		le := LargeExpense{
			TransactionID: t.ID,
			Title:         t.Title,
			Category:      t.Category,
			Amount:        t.Amount,
			Date:          t.Date,
			Anomalous:     anomalous,
		}
		switch {
		case t.BaselineExcluded:
			le.Reason = "tagged one-off purchase, excluded from spending baselines"
		case anomalous:
			le.Reason = fmt.Sprintf("far above typical %s purchases in the last %d months", t.Category, historyMonths)
		default:
			le.Reason = "large share of this month's total spending"
		}
		out = append(out, le)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	if len(out) > maxLargeExpenses {
		out = out[:maxLargeExpenses]
	}
	return out
}

func findOverBudget(txs []core.Transaction, year, month int, thresholds ResolvedThresholds) []OverBudgetCategory {
	byCat := expenseByCategory(txs, year, month)

	var out []OverBudgetCategory
	for _, cat := range sortedKeys(byCat) {
		limit, ok := thresholds.Monthly[cat]
		if !ok || byCat[cat] <= limit {
			continue
		}
		weeklyLimit, ok := thresholds.Weekly[cat]
		if !ok {
			weeklyLimit = limit / 4
		}
		over := percentChange(byCat[cat], limit)
		out = append(out, OverBudgetCategory{
			Category:      cat,
			Limit:         limit,
			Actual:        byCat[cat],
			OverAmount:    byCat[cat] - limit,
			OverPct:       over,
			Severity:      overspendSeverity(over),
			WeeklyOverage: byCat[cat]/4 - weeklyLimit,
		})
	}
	return out
}

func detectAnomalies(txs []core.Transaction, year, month int) []Anomaly {
	history := categoryHistory(txs, year, month, historyMonths)
	current := expenseByCategory(txs, year, month)

	cats := make([]string, 0, len(history))
	for cat := range history {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var out []Anomaly
	for _, cat := range cats {
		series := history[cat]
		if len(series) < 3 {
			continue
		}
		mean, stddev := meanStddev(series)
		cur := float64(current[cat])

		a := Anomaly{
			Category:       cat,
			CurrentAmount:  current[cat],
			HistoricalMean: mean,
			StdDev:         stddev,
		}

		if stddev == 0 {
			// Perfectly consistent history makes the z-score formula divide
			// by zero; a real spike over a constant baseline must still be
			// flagged.
			if mean > 0 && cur > 1.5*mean {
				a.Severity = AnomalySevere
				out = append(out, a)
			}
			continue
		}

		a.ZScore = (cur - mean) / stddev
		switch {
		case a.ZScore >= 3:
			a.Severity = AnomalySevere
		case a.ZScore >= 2:
			a.Severity = AnomalyModerate
		case a.ZScore >= 1.5:
			a.Severity = AnomalyMild
		default:
			continue
		}
		out = append(out, a)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ZScore > out[j].ZScore })
	return out
}

func buildTrends(txs []core.Transaction, year, month int) []CategoryTrend {
	// Fixed six-month series ending at the target month, zero-filled so the
	// earliest-3 vs recent-3 halves always line up.
	target := monthIndex(year, month)
	first := target - historyMonths + 1

	series := make(map[string][]int64)
	for _, t := range txs {
		if t.Type != core.Expense || !inBaseline(t) {
			continue
		}
		idx := monthIndex(t.Year, t.Month)
		if idx < first || idx > target {
			continue
		}
		s, ok := series[t.Category]
		if !ok {
			s = make([]int64, historyMonths)
			series[t.Category] = s
		}
		s[idx-first] += t.Amount
	}

	var out []CategoryTrend
	cats := make([]string, 0, len(series))
	for cat := range series {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		s := series[cat]
		half := historyMonths / 2
		early, _ := meanStddev(s[:half])
		recent, _ := meanStddev(s[half:])

		t := CategoryTrend{Category: cat, CurrentAmount: s[historyMonths-1], Direction: TrendStable}
		switch {
		case early == 0 && recent > 0:
			t.Direction = TrendIncreasing
			t.ChangePct = 100
		case early > 0:
			t.ChangePct = (recent - early) / early * 100
			if t.ChangePct > trendChangePct {
				t.Direction = TrendIncreasing
			} else if t.ChangePct < -trendChangePct {
				t.Direction = TrendDecreasing
			}
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CurrentAmount > out[j].CurrentAmount })
	if len(out) > maxTrendedReports {
		out = out[:maxTrendedReports]
	}
	return out
}

func buildSavingsAnalysis(txs []core.Transaction, year, month int, settings *core.AppSettings) SavingsAnalysis {
	income, expense := fullMonthTotals(txs, year, month)
	saved := income - expense

	sa := SavingsAnalysis{
		TargetRate:       defaultTargetSavingsRate,
		ActualSaved:      saved,
		YearlyProjection: saved * 12,
	}
	if income > 0 {
		sa.CurrentRate = float64(saved) / float64(income) * 100
	}

	if settings != nil && settings.SavingsGoals.MonthlyTarget > 0 {
		sa.MonthlyTarget = settings.SavingsGoals.MonthlyTarget
	} else {
		sa.MonthlyTarget = int64(float64(income) * defaultTargetSavingsRate / 100)
	}
	sa.Gap = sa.MonthlyTarget - saved
	sa.OnTrack = sa.Gap <= 0

	// Best and worst savings-rate months across the whole target year.
	first := true
	for m := 1; m <= 12; m++ {
		inc, exp := fullMonthTotals(txs, year, m)
		if inc == 0 && exp == 0 {
			continue
		}
		rate := -100.0
		if inc > 0 {
			rate = float64(inc-exp) / float64(inc) * 100
		}
		if first || rate > sa.BestRate {
			sa.BestMonth, sa.BestRate = m, rate
		}
		if first || rate < sa.WorstRate {
			sa.WorstMonth, sa.WorstRate = m, rate
		}
		first = false
	}
	return sa
}

// buildSuggestions applies the fixed improvement-rule set to an otherwise
// complete report. Rules run in a set order and output is sorted by priority
// only, so suggestions within one tier keep rule order.
func buildSuggestions(r MonthlyReport) []Suggestion {
	var out []Suggestion

	for _, ob := range r.OverBudget {
		out = append(out, Suggestion{
			Priority: PriorityHigh,
			Type:     "over_budget",
			Title:    fmt.Sprintf("Rein in %s spending", ob.Category),
			Message:  fmt.Sprintf("%s is %d over its monthly limit of %d (%.0f%% over).", ob.Category, ob.OverAmount, ob.Limit, ob.OverPct),
		})
	}

	for _, a := range r.Anomalies {
		if a.Severity != AnomalySevere && a.Severity != AnomalyModerate {
			continue
		}
		out = append(out, Suggestion{
			Priority: PriorityHigh,
			Type:     "anomaly",
			Title:    fmt.Sprintf("Check unusual %s spending", a.Category),
			Message:  fmt.Sprintf("%s spending of %d is well above its monthly average of %.0f.", a.Category, a.CurrentAmount, a.HistoricalMean),
		})
	}

	if r.Savings.Gap > 0 {
		out = append(out, Suggestion{
			Priority: PriorityHigh,
			Type:     "savings_gap",
			Title:    "Close the savings gap",
			Message:  fmt.Sprintf("Saved %d this month, %d short of the %d target.", r.Savings.ActualSaved, r.Savings.Gap, r.Savings.MonthlyTarget),
		})
	} else {
		out = append(out, Suggestion{
			Priority: PriorityMedium,
			Type:     "savings_on_track",
			Title:    "Savings on track",
			Message:  fmt.Sprintf("Monthly savings target met with %d to spare; consider raising the target.", -r.Savings.Gap),
		})
	}

	if len(r.LargeExpenses) > 0 {
		var largeSum int64
		for _, le := range r.LargeExpenses {
			largeSum += le.Amount
		}
		if r.Summary.TotalExpense > 0 && float64(largeSum) > 0.3*float64(r.Summary.TotalExpense) {
			out = append(out, Suggestion{
				Priority: PriorityMedium,
				Type:     "large_concentration",
				Title:    "A few purchases dominate the month",
				Message:  fmt.Sprintf("%d large purchases account for %d of %d total spending.", len(r.LargeExpenses), largeSum, r.Summary.TotalExpense),
			})
		}
	}

	for _, t := range r.Trends {
		if t.Direction != TrendIncreasing {
			continue
		}
		out = append(out, Suggestion{
			Priority: PriorityMedium,
			Type:     "rising_trend",
			Title:    fmt.Sprintf("%s spending keeps rising", t.Category),
			Message:  fmt.Sprintf("%s has grown %.0f%% comparing the last three months against the three before.", t.Category, t.ChangePct),
		})
	}

	if r.Summary.TotalExpense > 0 {
		daily := r.Summary.AvgDailyExpense
		out = append(out, Suggestion{
			Priority: PriorityLow,
			Type:     "daily_trim",
			Title:    "Trim daily spending by 10%",
			Message:  fmt.Sprintf("Cutting the average daily spend of %d by 10%% frees roughly %d per month.", daily, daily*3),
		})
	}

	if r.Summary.PrevExpense > 0 && r.Summary.ExpenseChangePct < -5 {
		out = append(out, Suggestion{
			Priority: PriorityLow,
			Type:     "spending_down",
			Title:    "Spending is trending down",
			Message:  fmt.Sprintf("Expenses dropped %.0f%% compared to last month. Keep it up.", -r.Summary.ExpenseChangePct),
		})
	}

	rank := map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Priority] < rank[out[j].Priority] })
	return out
}
