package analysis

import "finhealth/internal/core"

// ResolvedThresholds is the merged spend-ceiling table: built-in defaults
// overlaid with the user's per-category and total limit overrides. Missing
// keys mean "no threshold configured" and are never an error.
type ResolvedThresholds struct {
	Weekly       map[string]int64
	Monthly      map[string]int64
	Yearly       map[string]int64
	WeeklyTotal  int64
	MonthlyTotal int64
}

type categoryCeiling struct {
	Weekly  int64
	Monthly int64
}

// Built-in per-category spend ceilings in whole currency units. These are
// process-wide immutable configuration; user overrides come from
// AppSettings.CategoryLimits.
var defaultCategoryCeilings = map[string]categoryCeiling{
	"groceries":     {Weekly: 1_500_000, Monthly: 6_000_000},
	"dining":        {Weekly: 800_000, Monthly: 3_000_000},
	"coffee":        {Weekly: 200_000, Monthly: 800_000},
	"snacks":        {Weekly: 150_000, Monthly: 600_000},
	"transport":     {Weekly: 400_000, Monthly: 1_500_000},
	"fuel":          {Weekly: 300_000, Monthly: 1_200_000},
	"parking":       {Weekly: 100_000, Monthly: 400_000},
	"rent":          {Weekly: 0, Monthly: 8_000_000},
	"utilities":     {Weekly: 0, Monthly: 1_500_000},
	"internet":      {Weekly: 0, Monthly: 400_000},
	"phone":         {Weekly: 0, Monthly: 300_000},
	"household":     {Weekly: 300_000, Monthly: 1_200_000},
	"health":        {Weekly: 300_000, Monthly: 1_500_000},
	"pharmacy":      {Weekly: 150_000, Monthly: 600_000},
	"fitness":       {Weekly: 200_000, Monthly: 700_000},
	"education":     {Weekly: 400_000, Monthly: 2_000_000},
	"books":         {Weekly: 150_000, Monthly: 500_000},
	"entertainment": {Weekly: 400_000, Monthly: 1_500_000},
	"streaming":     {Weekly: 0, Monthly: 350_000},
	"clothing":      {Weekly: 300_000, Monthly: 1_200_000},
	"beauty":        {Weekly: 200_000, Monthly: 800_000},
	"gifts":         {Weekly: 250_000, Monthly: 1_000_000},
	"travel":        {Weekly: 500_000, Monthly: 2_500_000},
	"pets":          {Weekly: 200_000, Monthly: 800_000},
	"subscriptions": {Weekly: 0, Monthly: 500_000},
	"miscellaneous": {Weekly: 300_000, Monthly: 1_000_000},
}

const (
	defaultWeeklyTotal  int64 = 5_000_000
	defaultMonthlyTotal int64 = 20_000_000
)

// ResolveThresholds merges the built-in ceiling tables with the overrides in
// settings. A nil settings silently yields the defaults. Any category with a
// resolved monthly ceiling but no explicit yearly override gets
// yearly = monthly * 12.
func ResolveThresholds(settings *core.AppSettings) ResolvedThresholds {
	r := ResolvedThresholds{
		Weekly:       make(map[string]int64, len(defaultCategoryCeilings)),
		Monthly:      make(map[string]int64, len(defaultCategoryCeilings)),
		Yearly:       make(map[string]int64, len(defaultCategoryCeilings)),
		WeeklyTotal:  defaultWeeklyTotal,
		MonthlyTotal: defaultMonthlyTotal,
	}

	for cat, c := range defaultCategoryCeilings {
		if c.Weekly > 0 {
			r.Weekly[cat] = c.Weekly
		}
		if c.Monthly > 0 {
			r.Monthly[cat] = c.Monthly
		}
	}

	explicitYearly := make(map[string]bool)
	if settings != nil {
		for cat, lim := range settings.CategoryLimits {
			if lim.Weekly != nil {
				r.Weekly[cat] = *lim.Weekly
			}
			if lim.Monthly != nil {
				r.Monthly[cat] = *lim.Monthly
			}
			if lim.Yearly != nil {
				r.Yearly[cat] = *lim.Yearly
				explicitYearly[cat] = true
			}
		}
		if settings.TotalLimits.WeeklyTotal != nil {
			r.WeeklyTotal = *settings.TotalLimits.WeeklyTotal
		}
		if settings.TotalLimits.MonthlyTotal != nil {
			r.MonthlyTotal = *settings.TotalLimits.MonthlyTotal
		}
	}

	for cat, monthly := range r.Monthly {
		if !explicitYearly[cat] {
			r.Yearly[cat] = monthly * 12
		}
	}

	return r
}
