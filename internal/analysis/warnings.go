package analysis

import (
	"fmt"
	"sort"
	"time"

	"finhealth/internal/core"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// SpendingWarning is one real-time alert produced by the rolling-window rule
// scan. IDs are deterministic per rule and category so repeated runs over the
// same snapshot produce the same warnings.
type SpendingWarning struct {
	ID              string
	Severity        string
	Type            string
	Title           string
	Message         string
	Category        string
	CurrentAmount   int64
	ThresholdAmount int64
	PercentageOver  float64
}

// spikeFactor flags a category when the current month runs past this multiple
// of its trailing six-month average; criticalSpikeFactor upgrades severity.
const (
	spikeFactor         = 1.5
	criticalSpikeFactor = 2.0
	spikeLookbackMonths = 6
)

// GenerateWarnings evaluates the rolling-window spending rules for the target
// month. The transaction window must cover the current calendar week plus the
// trailing six months. thresholds may be nil, in which case built-in defaults
// apply.
//
// now is the single wall-clock input of the whole analysis package: it
// anchors the current-week bucketing of rule 1 and gates the negative-net
// rule, which only fires after the 15th so that a salary posting late in the
// month does not raise false alarms. Everything else depends only on the
// snapshot and the target year/month.
func GenerateWarnings(txs []core.Transaction, year, month int, thresholds *ResolvedThresholds, now time.Time) []SpendingWarning {
	var resolved ResolvedThresholds
	if thresholds != nil {
		resolved = *thresholds
	} else {
		resolved = ResolveThresholds(nil)
	}

	var warnings []SpendingWarning
	seen := make(map[string]bool)
	add := func(w SpendingWarning) {
		if seen[w.ID] {
			return
		}
		seen[w.ID] = true
		warnings = append(warnings, w)
	}

	// Rule 1: per-category overspend in the current calendar week.
	week := currentWeek(now)
	weekByCat := make(map[string]int64)
	for _, t := range txs {
		if t.Type == core.Expense && inBaseline(t) && week.contains(t.Date) {
			weekByCat[t.Category] += t.Amount
		}
	}
	for _, cat := range sortedKeys(weekByCat) {
		limit, ok := resolved.Weekly[cat]
		if !ok || weekByCat[cat] <= limit {
			continue
		}
		over := percentChange(weekByCat[cat], limit)
		add(SpendingWarning{
			ID:              "weekly-" + cat,
			Severity:        overspendSeverity(over),
			Type:            "weekly_overspend",
			Title:           fmt.Sprintf("Weekly budget exceeded: %s", cat),
			Message:         fmt.Sprintf("Spent %d on %s this week, %.0f%% over the weekly limit of %d.", weekByCat[cat], cat, over, limit),
			Category:        cat,
			CurrentAmount:   weekByCat[cat],
			ThresholdAmount: limit,
			PercentageOver:  over,
		})
	}

	// Rule 2: per-category overspend in the target month.
	monthByCat := expenseByCategory(txs, year, month)
	for _, cat := range sortedKeys(monthByCat) {
		limit, ok := resolved.Monthly[cat]
		if !ok || monthByCat[cat] <= limit {
			continue
		}
		over := percentChange(monthByCat[cat], limit)
		add(SpendingWarning{
			ID:              "monthly-" + cat,
			Severity:        overspendSeverity(over),
			Type:            "monthly_overspend",
			Title:           fmt.Sprintf("Monthly budget exceeded: %s", cat),
			Message:         fmt.Sprintf("Spent %d on %s this month, %.0f%% over the monthly limit of %d.", monthByCat[cat], cat, over, limit),
			Category:        cat,
			CurrentAmount:   monthByCat[cat],
			ThresholdAmount: limit,
			PercentageOver:  over,
		})
	}

	// Rule 3: total monthly overspend.
	monthIncome, monthExpense := monthTotals(txs, year, month)
	if resolved.MonthlyTotal > 0 && monthExpense > resolved.MonthlyTotal {
		over := percentChange(monthExpense, resolved.MonthlyTotal)
		add(SpendingWarning{
			ID:              "monthly-total",
			Severity:        overspendSeverity(over),
			Type:            "total_overspend",
			Title:           "Total monthly budget exceeded",
			Message:         fmt.Sprintf("Total expenses of %d are %.0f%% over the monthly budget of %d.", monthExpense, over, resolved.MonthlyTotal),
			CurrentAmount:   monthExpense,
			ThresholdAmount: resolved.MonthlyTotal,
			PercentageOver:  over,
		})
	}

	// Rule 4: category spike versus the trailing six-month average. Skipped
	// when rule 2 already flagged the category, to avoid doubling up.
	history := categoryHistory(txs, year, month, spikeLookbackMonths)
	for _, cat := range sortedKeys(monthByCat) {
		if seen["monthly-"+cat] {
			continue
		}
		series := history[cat]
		if len(series) == 0 {
			continue
		}
		var sum int64
		for _, v := range series {
			sum += v
		}
		avg := float64(sum) / float64(len(series))
		if avg <= 0 {
			continue
		}
		cur := float64(monthByCat[cat])
		if cur <= spikeFactor*avg {
			continue
		}
		severity := SeverityWarning
		if cur > criticalSpikeFactor*avg {
			severity = SeverityCritical
		}
		add(SpendingWarning{
			ID:              "spike-" + cat,
			Severity:        severity,
			Type:            "category_spike",
			Title:           fmt.Sprintf("Unusual spending: %s", cat),
			Message:         fmt.Sprintf("Spending of %d on %s is %.1fx its recent monthly average of %.0f.", monthByCat[cat], cat, cur/avg, avg),
			Category:        cat,
			CurrentAmount:   monthByCat[cat],
			ThresholdAmount: int64(avg),
			PercentageOver:  percentChange(monthByCat[cat], int64(avg)),
		})
	}

	// Rule 5: negative net income, gated on day-of-month > 15.
	if net := monthIncome - monthExpense; net < 0 && now.Day() > 15 {
		add(SpendingWarning{
			ID:            "negative-balance",
			Severity:      SeverityCritical,
			Type:          "negative_net",
			Title:         "Expenses exceed income",
			Message:       fmt.Sprintf("This month's expenses exceed income by %d with most of the month gone.", -net),
			CurrentAmount: -net,
		})
	}

	// Rule 6: nothing fired, report a healthy state.
	if len(warnings) == 0 {
		add(SpendingWarning{
			ID:       "healthy",
			Severity: SeverityInfo,
			Type:     "all_clear",
			Title:    "Spending looks healthy",
			Message:  "No budget or trend issues detected this month.",
		})
	}

	sortWarnings(warnings)
	return warnings
}

func overspendSeverity(percentOver float64) string {
	if percentOver > 50 {
		return SeverityCritical
	}
	return SeverityWarning
}

var severityRank = map[string]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

// sortWarnings orders critical before warning before info, keeping insertion
// order within each severity.
func sortWarnings(ws []SpendingWarning) {
	sort.SliceStable(ws, func(i, j int) bool {
		return severityRank[ws[i].Severity] < severityRank[ws[j].Severity]
	})
}

// sortedKeys gives deterministic iteration order over category maps so that
// repeated runs emit warnings in identical order.
func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
