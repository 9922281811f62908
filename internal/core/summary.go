package core

// CategoryShare is the expense total of one category within a statistics
// window.
type CategoryShare struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Color      string  `json:"color"`
	Amount     Money   `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// MonthTrend sums one month label.
type MonthTrend struct {
	Month   string `json:"month"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
	Balance Money  `json:"balance"`
}

// Statistics summarizes an owner's ledger, optionally for a single month.
type Statistics struct {
	Month      string          `json:"month,omitempty"`
	Income     Money           `json:"totalIncome"`
	Expense    Money           `json:"totalExpense"`
	Balance    Money           `json:"balance"`
	Categories []CategoryShare `json:"categoryBreakdown"`
	Trend      []MonthTrend    `json:"monthlyTrend"`
}

// BudgetStatus compares a category's expenses in a month with its limit.
type BudgetStatus struct {
	Category   string  `json:"category"`
	Month      string  `json:"month"`
	Used       Money   `json:"used"`
	Limit      Money   `json:"limit"`
	Percentage float64 `json:"percentage"`
}
