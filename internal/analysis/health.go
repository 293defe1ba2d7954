package analysis

import (
	"fmt"

	"finhealth/internal/core"
)

// HealthScore is the combined 0-100 financial health rating with its five
// independent 0-20 sub-scores and a human-readable breakdown.
type HealthScore struct {
	Overall     int
	Savings     int
	Diversity   int
	Essential   int
	DebtBurden  int
	Consistency int
	Breakdown   []ScoreBreakdown
}

// ScoreBreakdown explains one sub-score in plain language.
type ScoreBreakdown struct {
	Name        string
	Score       int
	MaxScore    int
	Description string
}

// Category groups counted as essential spending for the essential-ratio
// sub-score. Groups are coarser than categories and user data outside this
// list is treated as discretionary.
var essentialGroups = map[string]bool{
	"housing":   true,
	"food":      true,
	"utilities": true,
	"health":    true,
	"transport": true,
	"education": true,
}

// CalculateHealthScore rates a trailing window of transactions (typically 6
// months) together with the loan book. monthsBack is the window length used
// to annualize income for the debt-burden sub-score; paid maps loan ID to the
// total repaid so far. All five formulas fall back to fixed degenerate scores
// instead of erroring on empty input.
func CalculateHealthScore(txs []core.Transaction, loans []core.Loan, monthsBack int, paid map[int64]int64) HealthScore {
	if monthsBack <= 0 {
		monthsBack = 6
	}

	var income, expense int64
	months := make(map[int]int64) // month index -> expense total
	catExpense := make(map[string]int64)
	groupExpense := make(map[string]int64)
	for _, t := range txs {
		if !inBaseline(t) {
			continue
		}
		if t.Type == core.Income {
			income += t.Amount
			continue
		}
		expense += t.Amount
		months[monthIndex(t.Year, t.Month)] += t.Amount
		catExpense[t.Category] += t.Amount
		groupExpense[t.CategoryGroup] += t.Amount
	}

	hs := HealthScore{}
	hs.Savings, hs.Breakdown = appendScore(hs.Breakdown, savingsScore(income, expense))
	hs.Diversity, hs.Breakdown = appendScore(hs.Breakdown, diversityScore(catExpense, expense))
	hs.Essential, hs.Breakdown = appendScore(hs.Breakdown, essentialScore(groupExpense, expense))
	hs.DebtBurden, hs.Breakdown = appendScore(hs.Breakdown, debtScore(loans, paid, income, monthsBack))
	hs.Consistency, hs.Breakdown = appendScore(hs.Breakdown, consistencyScore(months))
	hs.Overall = hs.Savings + hs.Diversity + hs.Essential + hs.DebtBurden + hs.Consistency
	return hs
}

func appendScore(breakdown []ScoreBreakdown, b ScoreBreakdown) (int, []ScoreBreakdown) {
	return b.Score, append(breakdown, b)
}

func savingsScore(income, expense int64) ScoreBreakdown {
	b := ScoreBreakdown{Name: "savings ratio", MaxScore: 20}
	if income == 0 {
		b.Score = 4
		b.Description = "No income recorded in this window."
		return b
	}
	ratio := float64(income-expense) / float64(income) * 100
	switch {
	case ratio >= 30:
		b.Score = 20
		b.Description = fmt.Sprintf("Excellent: saving %.0f%% of income.", ratio)
	case ratio >= 20:
		b.Score = 16
		b.Description = fmt.Sprintf("Good: saving %.0f%% of income.", ratio)
	case ratio >= 10:
		b.Score = 12
		b.Description = fmt.Sprintf("Fair: saving %.0f%% of income.", ratio)
	case ratio >= 0:
		b.Score = 8
		b.Description = fmt.Sprintf("Thin margin: saving only %.0f%% of income.", ratio)
	default:
		// Linear decay below zero: one point lost per 5% overspend, floor 0.
		s := 8 + int(ratio/5)
		if s < 0 {
			s = 0
		}
		b.Score = s
		b.Description = fmt.Sprintf("Spending exceeds income by %.0f%%.", -ratio)
	}
	return b
}

func diversityScore(catExpense map[string]int64, total int64) ScoreBreakdown {
	b := ScoreBreakdown{Name: "expense diversity", MaxScore: 20}
	if total == 0 {
		b.Score = 20
		b.Description = "No expenses in this window."
		return b
	}
	// Herfindahl index over category shares: 1 = everything in one category.
	var hhi float64
	for _, amt := range catExpense {
		share := float64(amt) / float64(total)
		hhi += share * share
	}
	switch {
	case hhi < 0.15:
		b.Score = 20
		b.Description = "Spending is well spread across categories."
	case hhi < 0.25:
		b.Score = 16
		b.Description = "Spending is reasonably diversified."
	case hhi < 0.4:
		b.Score = 12
		b.Description = "Spending leans on a few categories."
	case hhi < 0.6:
		b.Score = 6
		b.Description = "Spending is concentrated in very few categories."
	default:
		b.Score = 0
		b.Description = "Nearly all spending sits in one category."
	}
	return b
}

func essentialScore(groupExpense map[string]int64, total int64) ScoreBreakdown {
	b := ScoreBreakdown{Name: "essential balance", MaxScore: 20}
	if total == 0 {
		b.Score = 15
		b.Description = "No expenses to classify."
		return b
	}
	var essential int64
	for group, amt := range groupExpense {
		if essentialGroups[group] {
			essential += amt
		}
	}
	ratio := float64(essential) / float64(total) * 100
	// Tier boundaries are deliberately asymmetric; the 5-point tier is only
	// reachable in the narrow [40,45) and (75,80] bands.
	switch {
	case ratio >= 50 && ratio <= 70:
		b.Score = 20
		b.Description = fmt.Sprintf("Healthy essential share at %.0f%%.", ratio)
	case ratio >= 45 && ratio < 50, ratio > 70 && ratio <= 75:
		b.Score = 15
		b.Description = fmt.Sprintf("Essential share of %.0f%% is slightly off balance.", ratio)
	case ratio < 40 || ratio > 80:
		b.Score = 10
		b.Description = fmt.Sprintf("Essential share of %.0f%% is far from the 50-70%% band.", ratio)
	default:
		b.Score = 5
		b.Description = fmt.Sprintf("Essential share of %.0f%% is off balance.", ratio)
	}
	return b
}

func debtScore(loans []core.Loan, paid map[int64]int64, windowIncome int64, monthsBack int) ScoreBreakdown {
	b := ScoreBreakdown{Name: "debt burden", MaxScore: 20}

	var borrowing, lending int64
	for _, l := range loans {
		remaining := l.Remaining(paid[l.ID])
		if remaining == 0 {
			continue
		}
		switch l.Type {
		case core.Borrowing:
			if !l.BaselineExcluded {
				borrowing += remaining
			}
		case core.Lending:
			lending += remaining
		}
	}

	annualIncome := windowIncome / int64(monthsBack) * 12
	if annualIncome == 0 {
		b.Score = 8
		b.Description = "No income to measure debt against."
		return b
	}

	ratio := float64(borrowing) / float64(annualIncome) * 100
	switch {
	case ratio < 5:
		b.Score = 20
		b.Description = "Debt is negligible relative to income."
	case ratio < 15:
		b.Score = 16
		b.Description = fmt.Sprintf("Debt at %.0f%% of annual income is manageable.", ratio)
	case ratio < 25:
		b.Score = 12
		b.Description = fmt.Sprintf("Debt at %.0f%% of annual income deserves attention.", ratio)
	case ratio < 35:
		b.Score = 8
		b.Description = fmt.Sprintf("Debt at %.0f%% of annual income is heavy.", ratio)
	case ratio < 50:
		b.Score = 4
		b.Description = fmt.Sprintf("Debt at %.0f%% of annual income is very heavy.", ratio)
	default:
		// Decay past 50%: one point lost per additional 25%, floor 0.
		s := 2 - int((ratio-50)/25)
		if s < 0 {
			s = 0
		}
		b.Score = s
		b.Description = fmt.Sprintf("Debt at %.0f%% of annual income is critical.", ratio)
	}

	if lending > borrowing && b.Score < 20 {
		b.Score += 2
		if b.Score > 20 {
			b.Score = 20
		}
		b.Description += " Outstanding lending exceeds borrowing."
	}
	return b
}

func consistencyScore(monthExpense map[int]int64) ScoreBreakdown {
	b := ScoreBreakdown{Name: "spending consistency", MaxScore: 20}
	if len(monthExpense) < 2 {
		b.Score = 12
		b.Description = "Not enough months to measure consistency."
		return b
	}
	values := make([]int64, 0, len(monthExpense))
	for _, v := range monthExpense {
		values = append(values, v)
	}
	mean, stddev := meanStddev(values)
	if mean == 0 {
		b.Score = 12
		b.Description = "Not enough spending to measure consistency."
		return b
	}
	cv := stddev / mean
	switch {
	case cv < 0.15:
		b.Score = 20
		b.Description = "Monthly spending is very steady."
	case cv < 0.25:
		b.Score = 16
		b.Description = "Monthly spending is fairly steady."
	case cv < 0.4:
		b.Score = 12
		b.Description = "Monthly spending varies noticeably."
	case cv < 0.6:
		b.Score = 8
		b.Description = "Monthly spending swings a lot."
	default:
		b.Score = 4
		b.Description = "Monthly spending is highly erratic."
	}
	return b
}
