package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhealth/internal/core"
)

// expGroupTx is expTx with an explicit category group.
func expGroupTx(y, m, d int, category, group string, amount int64) core.Transaction {
	t := expTx(y, m, d, category, amount)
	t.CategoryGroup = group
	return t
}

func loan(id int64, lt core.LoanType, amount int64, tags string) core.Loan {
	l := core.Loan{
		ID:          id,
		Title:       "loan",
		Amount:      amount,
		Date:        core.NewDate(2026, 1, 10),
		Type:        lt,
		RelatedTags: tags,
	}
	l.Normalize()
	return l
}

// steadyWindow builds six months of identical income and mixed-group
// expenses: 10M in, 7M out per month, 30% savings rate.
func steadyWindow() []core.Transaction {
	var txs []core.Transaction
	for m := 1; m <= 6; m++ {
		txs = append(txs,
			incTx(2026, m, 1, 10_000_000),
			expGroupTx(2026, m, 3, "rent", "housing", 3_000_000),
			expGroupTx(2026, m, 5, "groceries", "food", 1_200_000),
			expGroupTx(2026, m, 8, "utilities", "utilities", 500_000),
			expGroupTx(2026, m, 10, "entertainment", "leisure", 800_000),
			expGroupTx(2026, m, 12, "clothing", "shopping", 700_000),
			expGroupTx(2026, m, 15, "dining", "food", 800_000),
		)
	}
	return txs
}

func TestHealthScoreOverallIsSumOfSubScores(t *testing.T) {
	hs := CalculateHealthScore(steadyWindow(), nil, 6, nil)

	assert.Equal(t, hs.Savings+hs.Diversity+hs.Essential+hs.DebtBurden+hs.Consistency, hs.Overall)
	assert.GreaterOrEqual(t, hs.Overall, 0)
	assert.LessOrEqual(t, hs.Overall, 100)
	require.Len(t, hs.Breakdown, 5)
	for _, b := range hs.Breakdown {
		assert.GreaterOrEqual(t, b.Score, 0)
		assert.LessOrEqual(t, b.Score, 20)
		assert.Equal(t, 20, b.MaxScore)
		assert.NotEmpty(t, b.Description)
	}
}

func TestHealthScoreSteadyWindow(t *testing.T) {
	hs := CalculateHealthScore(steadyWindow(), nil, 6, nil)

	assert.Equal(t, 20, hs.Savings, "30%% savings rate is the top tier")
	assert.Equal(t, 20, hs.Consistency, "identical months have zero variation")
	// Essential groups (housing, food, utilities) carry 5.5M of 7M: ~79%.
	assert.Equal(t, 5, hs.Essential)
	assert.Equal(t, 20, hs.DebtBurden, "no loans at all")
}

func TestHealthScoreEmptyInput(t *testing.T) {
	hs := CalculateHealthScore(nil, nil, 6, nil)

	assert.Equal(t, 4, hs.Savings)
	assert.Equal(t, 20, hs.Diversity)
	assert.Equal(t, 15, hs.Essential)
	assert.Equal(t, 8, hs.DebtBurden)
	assert.Equal(t, 12, hs.Consistency)
	assert.Equal(t, 59, hs.Overall)
}

func TestSavingsScoreTiers(t *testing.T) {
	cases := []struct {
		name            string
		income, expense int64
		want            int
	}{
		{"excellent", 100, 70, 20},
		{"good", 100, 80, 16},
		{"fair", 100, 90, 12},
		{"thin", 100, 100, 8},
		{"overspend 25%", 100, 125, 3},
		{"overspend 40%", 100, 140, 0},
		{"deep overspend floors at zero", 100, 500, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, savingsScore(tc.income, tc.expense).Score)
		})
	}
}

func TestDiversityScoreConcentration(t *testing.T) {
	single := map[string]int64{"rent": 1000}
	assert.Equal(t, 0, diversityScore(single, 1000).Score, "one category is maximal concentration")

	spread := make(map[string]int64)
	for _, cat := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		spread[cat] = 100
	}
	assert.Equal(t, 20, diversityScore(spread, 800).Score, "eight equal categories give HHI 0.125")
}

func TestDebtScoreTiersAndLendingBonus(t *testing.T) {
	// 10M per month over 6 months annualizes to 120M.
	window := []core.Transaction{}
	for m := 1; m <= 6; m++ {
		window = append(window, incTx(2026, m, 1, 10_000_000))
	}

	light := []core.Loan{loan(1, core.Borrowing, 4_000_000, "")}
	hs := CalculateHealthScore(window, light, 6, nil)
	assert.Equal(t, 20, hs.DebtBurden, "debt below 5%% of annual income")

	heavy := []core.Loan{loan(1, core.Borrowing, 40_000_000, "")}
	hs = CalculateHealthScore(window, heavy, 6, nil)
	assert.Equal(t, 8, hs.DebtBurden, "debt at ~33%% of annual income")

	// Partially repaid principal shrinks the burden.
	hs = CalculateHealthScore(window, heavy, 6, map[int64]int64{1: 36_000_000})
	assert.Equal(t, 20, hs.DebtBurden)

	// Tagged one-off borrowing stays out of the ratio entirely.
	tagged := []core.Loan{loan(1, core.Borrowing, 40_000_000, core.BaselineExcludeTag)}
	hs = CalculateHealthScore(window, tagged, 6, nil)
	assert.Equal(t, 20, hs.DebtBurden)

	mixed := []core.Loan{
		loan(1, core.Borrowing, 20_000_000, ""),
		loan(2, core.Lending, 30_000_000, ""),
	}
	hs = CalculateHealthScore(window, mixed, 6, nil)
	assert.Equal(t, 14, hs.DebtBurden, "16%% tier plus the net-lender bonus")
}

func TestConsistencyScoreVariation(t *testing.T) {
	erratic := []core.Transaction{
		expTx(2026, 1, 5, "misc", 100_000),
		expTx(2026, 2, 5, "misc", 2_000_000),
		expTx(2026, 3, 5, "misc", 300_000),
	}
	hs := CalculateHealthScore(erratic, nil, 6, nil)
	assert.Equal(t, 4, hs.Consistency)

	oneMonth := []core.Transaction{expTx(2026, 1, 5, "misc", 100_000)}
	hs = CalculateHealthScore(oneMonth, nil, 6, nil)
	assert.Equal(t, 12, hs.Consistency, "a single month cannot show a pattern")
}
