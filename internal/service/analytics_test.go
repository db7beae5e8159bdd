package service_test

import (
	"math"
	"testing"
	"time"

	"github.com/dmarques/finsight-api/internal/domain"
	"github.com/dmarques/finsight-api/internal/service"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- BuildAnalytics ---

func TestBuildAnalytics_Basic(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: 1000, Date: day("2025-06-01"), Name: "Salary", Category: "income"},
		{Amount: -200, Date: day("2025-06-03"), Name: "Weekly shop", MerchantName: "Acme", Category: "groceries"},
		{Amount: -50, Date: day("2025-06-10"), Name: "Top-up shop", MerchantName: "Acme", Category: "groceries"},
	}
	accounts := []domain.Account{{Name: "checking", CurrentBalance: 500}}

	result := service.BuildAnalytics(txns, accounts)

	if !almostEqual(result.IncomeSummary.Total, 1000) {
		t.Errorf("expected income total 1000, got %f", result.IncomeSummary.Total)
	}
	if !almostEqual(result.ExpenseSummary.Total, 250) {
		t.Errorf("expected expense total 250, got %f", result.ExpenseSummary.Total)
	}
	if !almostEqual(result.CashFlow.Net, 750) {
		t.Errorf("expected net cash flow 750, got %f", result.CashFlow.Net)
	}
	if !almostEqual(result.CategoryBreakdown["groceries"], 250) {
		t.Errorf("expected groceries breakdown 250, got %f", result.CategoryBreakdown["groceries"])
	}
	if !almostEqual(result.BalanceTrend["checking"], 500) {
		t.Errorf("expected checking balance 500, got %f", result.BalanceTrend["checking"])
	}
	if len(result.TopMerchants) != 1 {
		t.Fatalf("expected 1 top merchant, got %d", len(result.TopMerchants))
	}
	if result.TopMerchants[0].Name != "Acme" || !almostEqual(result.TopMerchants[0].Amount, 250) {
		t.Errorf("expected top merchant Acme/250, got %s/%f", result.TopMerchants[0].Name, result.TopMerchants[0].Amount)
	}
}

func TestBuildAnalytics_ZeroAmountIsIncome(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: 0, Date: day("2025-06-01"), Name: "Zero", Category: "misc"},
	}

	result := service.BuildAnalytics(txns, nil)

	if !almostEqual(result.IncomeSummary.Total, 0) {
		t.Errorf("expected income total 0, got %f", result.IncomeSummary.Total)
	}
	if !almostEqual(result.ExpenseSummary.Total, 0) {
		t.Errorf("expected expense total 0, got %f", result.ExpenseSummary.Total)
	}
	if len(result.TopMerchants) != 0 {
		t.Errorf("zero-amount transaction must not appear as an expense merchant, got %v", result.TopMerchants)
	}
}

func TestBuildAnalytics_UnknownMerchantFallback(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: -30, Date: day("2025-06-02"), Name: "Cash withdrawal", Category: "cash"},
	}

	result := service.BuildAnalytics(txns, nil)

	if len(result.TopMerchants) != 1 {
		t.Fatalf("expected 1 top merchant, got %d", len(result.TopMerchants))
	}
	if result.TopMerchants[0].Name != "Unknown" {
		t.Errorf("expected merchant 'Unknown', got '%s'", result.TopMerchants[0].Name)
	}
}

func TestBuildAnalytics_TopMerchantsStableTieBreak(t *testing.T) {
	// Beta and Alpha tie at 100; Beta appears first in the input and must
	// keep its position.
	txns := []domain.Transaction{
		{Amount: -100, Date: day("2025-06-01"), Name: "a", MerchantName: "Beta", Category: "misc"},
		{Amount: -100, Date: day("2025-06-02"), Name: "b", MerchantName: "Alpha", Category: "misc"},
		{Amount: -300, Date: day("2025-06-03"), Name: "c", MerchantName: "Gamma", Category: "misc"},
	}

	result := service.BuildAnalytics(txns, nil)

	want := []string{"Gamma", "Beta", "Alpha"}
	if len(result.TopMerchants) != len(want) {
		t.Fatalf("expected %d merchants, got %d", len(want), len(result.TopMerchants))
	}
	for i, name := range want {
		if result.TopMerchants[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, result.TopMerchants[i].Name)
		}
	}
}

func TestBuildAnalytics_TopMerchantsCappedAtFive(t *testing.T) {
	merchants := []string{"M1", "M2", "M3", "M4", "M5", "M6", "M7"}
	txns := make([]domain.Transaction, 0, len(merchants))
	for i, m := range merchants {
		txns = append(txns, domain.Transaction{
			Amount:       -float64(10 * (i + 1)),
			Date:         day("2025-06-01"),
			Name:         m,
			MerchantName: m,
			Category:     "misc",
		})
	}

	result := service.BuildAnalytics(txns, nil)

	if len(result.TopMerchants) != 5 {
		t.Fatalf("expected 5 merchants, got %d", len(result.TopMerchants))
	}
	if result.TopMerchants[0].Name != "M7" {
		t.Errorf("expected biggest spender M7 first, got %s", result.TopMerchants[0].Name)
	}
	for _, m := range result.TopMerchants {
		if m.Name == "M1" || m.Name == "M2" {
			t.Errorf("merchant %s should have been cut from the top 5", m.Name)
		}
	}
}

func TestBuildAnalytics_Empty(t *testing.T) {
	result := service.BuildAnalytics(nil, nil)

	if !almostEqual(result.IncomeSummary.Total, 0) || !almostEqual(result.ExpenseSummary.Total, 0) {
		t.Errorf("expected zero totals, got income=%f expenses=%f", result.IncomeSummary.Total, result.ExpenseSummary.Total)
	}
	if !almostEqual(result.CashFlow.Net, 0) {
		t.Errorf("expected zero net, got %f", result.CashFlow.Net)
	}
	if len(result.TopMerchants) != 0 {
		t.Errorf("expected no merchants, got %v", result.TopMerchants)
	}
	if len(result.CategoryBreakdown) != 0 {
		t.Errorf("expected empty breakdown, got %v", result.CategoryBreakdown)
	}
}

// --- BuildFinancialOverview ---

func TestBuildFinancialOverview_MonthlyNormalization(t *testing.T) {
	// 90-day window: 3000 income, 900 expenses. Monthly figures divide by 3.
	txns := []domain.Transaction{
		{Amount: 1000, Date: day("2025-04-01"), Name: "Salary", Category: "income"},
		{Amount: 1000, Date: day("2025-05-01"), Name: "Salary", Category: "income"},
		{Amount: 1000, Date: day("2025-06-01"), Name: "Salary", Category: "income"},
		{Amount: -300, Date: day("2025-04-15"), Name: "Rent", MerchantName: "Lofts", Category: "housing"},
		{Amount: -300, Date: day("2025-05-15"), Name: "Rent", MerchantName: "Lofts", Category: "housing"},
		{Amount: -300, Date: day("2025-06-15"), Name: "Rent", MerchantName: "Lofts", Category: "housing"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	if !almostEqual(overview.Income.Total, 3000) {
		t.Errorf("expected income total 3000, got %f", overview.Income.Total)
	}
	if !almostEqual(overview.Expenses.MonthlyTotal, 300) {
		t.Errorf("expected monthly expenses 300, got %f", overview.Expenses.MonthlyTotal)
	}
	// Savings rate: (1000 - 300) / 1000.
	if !almostEqual(overview.Planning.SavingsRate, 0.7) {
		t.Errorf("expected savings rate 0.7, got %f", overview.Planning.SavingsRate)
	}
	// Savings target: 20% of monthly income.
	if !almostEqual(overview.Planning.SavingsTarget, 200) {
		t.Errorf("expected savings target 200, got %f", overview.Planning.SavingsTarget)
	}
	// Budget remaining: (2000 - 300) / 2000.
	if !almostEqual(overview.Budget.RemainingRatio, 0.85) {
		t.Errorf("expected remaining ratio 0.85, got %f", overview.Budget.RemainingRatio)
	}
	if !almostEqual(overview.Budget.MonthlyBudget, 2000) {
		t.Errorf("expected monthly budget 2000, got %f", overview.Budget.MonthlyBudget)
	}
}

func TestBuildFinancialOverview_Forecast(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: 900, Date: day("2025-05-01"), Name: "Salary", Category: "income"},
		{Amount: 1100, Date: day("2025-06-01"), Name: "Salary", Category: "income"},
		{Amount: -40, Date: day("2025-06-05"), Name: "Lunch", MerchantName: "Deli", Category: "food"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	if len(overview.Income.Forecast) != 1 {
		t.Fatalf("expected 1 forecast entry, got %d", len(overview.Income.Forecast))
	}
	entry := overview.Income.Forecast[0]
	// Mean of 900 and 1100, dated 30 days after the latest income.
	if !almostEqual(entry.Amount, 1000) {
		t.Errorf("expected forecast amount 1000, got %f", entry.Amount)
	}
	if entry.Date != "2025-07-01" {
		t.Errorf("expected forecast date 2025-07-01, got %s", entry.Date)
	}
}

func TestBuildFinancialOverview_NoIncome(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: -100, Date: day("2025-06-01"), Name: "Rent", MerchantName: "Lofts", Category: "housing"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	if len(overview.Income.Forecast) != 0 {
		t.Errorf("expected empty forecast without income, got %v", overview.Income.Forecast)
	}
	if overview.Income.Forecast == nil {
		t.Error("forecast must be an empty slice, not nil")
	}
	if !almostEqual(overview.Planning.SavingsRate, 0) {
		t.Errorf("expected savings rate 0 without income, got %f", overview.Planning.SavingsRate)
	}
	if !almostEqual(overview.Planning.SavingsTarget, 0) {
		t.Errorf("expected savings target 0 without income, got %f", overview.Planning.SavingsTarget)
	}
}

func TestBuildFinancialOverview_TrendSortedByMonth(t *testing.T) {
	// Input is deliberately out of chronological order.
	txns := []domain.Transaction{
		{Amount: -10, Date: day("2025-06-20"), Name: "c", MerchantName: "X", Category: "misc"},
		{Amount: -20, Date: day("2025-04-10"), Name: "a", MerchantName: "X", Category: "misc"},
		{Amount: -30, Date: day("2025-05-15"), Name: "b", MerchantName: "X", Category: "misc"},
		{Amount: -5, Date: day("2025-04-25"), Name: "d", MerchantName: "X", Category: "misc"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	trend := overview.Expenses.Trend
	if len(trend) != 3 {
		t.Fatalf("expected 3 months, got %d", len(trend))
	}
	wantMonths := []string{"2025-04", "2025-05", "2025-06"}
	wantAmounts := []float64{25, 30, 10}
	for i := range wantMonths {
		if trend[i].Month != wantMonths[i] {
			t.Errorf("position %d: expected month %s, got %s", i, wantMonths[i], trend[i].Month)
		}
		if !almostEqual(trend[i].Amount, wantAmounts[i]) {
			t.Errorf("month %s: expected %f, got %f", wantMonths[i], wantAmounts[i], trend[i].Amount)
		}
	}
}

func TestBuildFinancialOverview_TopCategories(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: -100, Date: day("2025-06-01"), Name: "a", MerchantName: "X", Category: "housing"},
		{Amount: -60, Date: day("2025-06-02"), Name: "b", MerchantName: "Y", Category: "food"},
		{Amount: -40, Date: day("2025-06-03"), Name: "c", MerchantName: "Z", Category: "food"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	cats := overview.Expenses.TopCategories
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	if cats[0].Category != "housing" || !almostEqual(cats[0].Amount, 100) {
		t.Errorf("expected housing/100 first, got %s/%f", cats[0].Category, cats[0].Amount)
	}
	if cats[1].Category != "food" || !almostEqual(cats[1].Amount, 100) {
		t.Errorf("expected food/100 second, got %s/%f", cats[1].Category, cats[1].Amount)
	}
}

func TestBuildFinancialOverview_CalendarGroups(t *testing.T) {
	// The 06-10 group must come before 06-05 because it is seen first.
	txns := []domain.Transaction{
		{Amount: -10, Date: day("2025-06-10"), Name: "first", MerchantName: "X", Category: "misc"},
		{Amount: -20, Date: day("2025-06-05"), Name: "second", MerchantName: "Y", Category: "misc"},
		{Amount: 30, Date: day("2025-06-10"), Name: "third", Category: "income"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	cal := overview.Calendar
	if len(cal) != 2 {
		t.Fatalf("expected 2 calendar days, got %d", len(cal))
	}
	if cal[0].Date != "2025-06-10" || cal[1].Date != "2025-06-05" {
		t.Errorf("expected first-seen date order [2025-06-10 2025-06-05], got [%s %s]", cal[0].Date, cal[1].Date)
	}
	if len(cal[0].Transactions) != 2 {
		t.Fatalf("expected 2 transactions on 2025-06-10, got %d", len(cal[0].Transactions))
	}
	if cal[0].Transactions[0].Name != "first" || cal[0].Transactions[1].Name != "third" {
		t.Errorf("expected per-day insertion order [first third], got [%s %s]",
			cal[0].Transactions[0].Name, cal[0].Transactions[1].Name)
	}
}

func TestBuildFinancialOverview_Balances(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: 500, Date: day("2025-06-01"), Name: "Salary", Category: "income"},
		{Amount: -100, Date: day("2025-06-02"), Name: "Rent", MerchantName: "Lofts", Category: "housing"},
	}
	accounts := []domain.Account{
		{Name: "checking", CurrentBalance: 1000},
		{Name: "savings", CurrentBalance: 2000},
	}

	overview := service.BuildFinancialOverview(txns, accounts)

	if !almostEqual(overview.Balances.Total, 3000) {
		t.Errorf("expected balance total 3000, got %f", overview.Balances.Total)
	}
	// Average of start-of-window estimate (3000 + 400) and current (3000).
	if !almostEqual(overview.Balances.AverageDaily, 3200) {
		t.Errorf("expected average daily balance 3200, got %f", overview.Balances.AverageDaily)
	}
}

func TestBuildFinancialOverview_IncomeEntries(t *testing.T) {
	txns := []domain.Transaction{
		{Amount: 700, Date: day("2025-05-01"), Name: "Salary", Category: "income"},
		{Amount: -50, Date: day("2025-05-02"), Name: "Lunch", MerchantName: "Deli", Category: "food"},
		{Amount: 25, Date: day("2025-05-03"), Name: "Refund", Category: "shopping"},
	}

	overview := service.BuildFinancialOverview(txns, nil)

	entries := overview.Income.Entries
	if len(entries) != 2 {
		t.Fatalf("expected 2 income entries, got %d", len(entries))
	}
	if entries[0].Name != "Salary" || entries[0].Date != "2025-05-01" || !almostEqual(entries[0].Amount, 700) {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "Refund" {
		t.Errorf("expected second entry Refund, got %s", entries[1].Name)
	}
	if len(overview.Planning.Recommendations) == 0 {
		t.Error("expected planning recommendations to be populated")
	}
}
