package domain

// ============================================================
// Short-form analytics (30-day window)
// ============================================================

// AnalyticsResult is the short-form analytics response computed over a
// 30-day transaction window.
type AnalyticsResult struct {
	IncomeSummary     AmountSummary      `json:"income_summary"`
	ExpenseSummary    AmountSummary      `json:"expense_summary"`
	CashFlow          CashFlow           `json:"cash_flow"`
	BalanceTrend      map[string]float64 `json:"balance_trend"`
	TopMerchants      []MerchantSpend    `json:"top_merchants"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
}

// AmountSummary carries a single aggregated total. Expense totals are
// reported as positive magnitudes.
type AmountSummary struct {
	Total float64 `json:"total"`
}

// CashFlow is income total minus expense magnitude total.
type CashFlow struct {
	Net float64 `json:"net"`
}

// MerchantSpend is one merchant's summed expense magnitude.
type MerchantSpend struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CategorySpend is one category's summed expense magnitude.
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// MonthSpend is the summed expense magnitude for one calendar month.
// Month keys use the zero-padded "2006-01" layout, so lexicographic
// ordering is chronological ordering.
type MonthSpend struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// ============================================================
// Long-form financial overview (90-day window)
// ============================================================

// FinancialOverview is the long-form analytics response computed over a
// 90-day transaction window. Monthly-normalized figures divide the 90-day
// total by 3.
type FinancialOverview struct {
	Income   IncomeFacet   `json:"income"`
	Expenses ExpenseFacet  `json:"expenses"`
	Balances BalanceFacet  `json:"balances"`
	Budget   BudgetFacet   `json:"budget"`
	Planning PlanningFacet `json:"planning"`
	Calendar []CalendarDay `json:"calendar"`
}

// IncomeFacet holds the income ledger plus the forward projection.
type IncomeFacet struct {
	Total    float64         `json:"total"`
	Entries  []IncomeEntry   `json:"entries"`
	Forecast []ForecastEntry `json:"forecast"`
}

// IncomeEntry is one income transaction in the ledger.
type IncomeEntry struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Name   string  `json:"name"`
}

// ForecastEntry is a projected income payment: the arithmetic mean of the
// window's income amounts, dated 30 days after the latest income transaction.
type ForecastEntry struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// ExpenseFacet holds the monthly-normalized expense total, the top spend
// categories, and the month-bucketed trend.
type ExpenseFacet struct {
	MonthlyTotal  float64         `json:"monthly_total"`
	TopCategories []CategorySpend `json:"top_categories"`
	Trend         []MonthSpend    `json:"trend"`
}

// BalanceFacet holds the summed current balance and an average-daily-balance
// estimate for the window.
type BalanceFacet struct {
	Total        float64 `json:"total"`
	AverageDaily float64 `json:"average_daily"`
}

// BudgetFacet reports progress against a fixed monthly budget.
type BudgetFacet struct {
	MonthlyBudget  float64 `json:"monthly_budget"`
	RemainingRatio float64 `json:"remaining_ratio"`
}

// PlanningFacet carries the savings target, the realized savings rate, and
// static planning recommendations.
type PlanningFacet struct {
	SavingsTarget   float64  `json:"savings_target"`
	SavingsRate     float64  `json:"savings_rate"`
	Recommendations []string `json:"recommendations"`
}

// CalendarDay groups the raw transactions of one calendar date.
// Days appear in the order their dates are first seen in the input.
type CalendarDay struct {
	Date         string                `json:"date"`
	Transactions []CalendarTransaction `json:"transactions"`
}

// CalendarTransaction is the per-day transaction view (amount, name and
// category only).
type CalendarTransaction struct {
	Amount   float64 `json:"amount"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
}

// Dashboard bundles both analytics shapes for clients that render them on
// a single screen.
type Dashboard struct {
	Analytics *AnalyticsResult   `json:"analytics"`
	Overview  *FinancialOverview `json:"overview"`
}
