package core

type (
	// AppSettings is the single user-editable settings row. A nil *AppSettings
	// everywhere means "use built-in defaults".
	AppSettings struct {
		SavingsGoals   SavingsGoals
		CategoryLimits map[string]CategoryLimit
		TotalLimits    TotalLimits
	}

	SavingsGoals struct {
		MonthlyTarget int64
		YearlyTarget  int64
		Notes         string
	}

	// CategoryLimit overrides the built-in spend ceiling for one category.
	// Nil fields fall back to the defaults per period.
	CategoryLimit struct {
		Weekly  *int64
		Monthly *int64
		Yearly  *int64
	}

	TotalLimits struct {
		WeeklyTotal  *int64
		MonthlyTotal *int64
	}
)
