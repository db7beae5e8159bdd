// Package service provides the business logic layer (use cases):
// the transaction analytics engine, the connect-a-bank flow and the
// aggregation-status poller.
package service

import (
	"sort"

	"github.com/dmarques/finsight-api/internal/domain"
)

const (
	// merchantUnknown is the sentinel for expenses without a merchant name.
	merchantUnknown = "Unknown"

	// topEntryLimit caps merchant and category rankings.
	topEntryLimit = 5

	// monthlyBudget is a fixed placeholder until real budgeting ships.
	monthlyBudget = 2000.0

	// savingsTargetRate is the recommended share of income to save.
	savingsTargetRate = 0.20

	// overviewMonths normalizes the 90-day overview window to months.
	overviewMonths = 3

	// forecastLeadDays is the projection horizon after the latest income.
	forecastLeadDays = 30

	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// planningRecommendations are the static planning suggestions included in
// every overview.
var planningRecommendations = []string{
	"Set aside 20% of your income before discretionary spending.",
	"Review your top spending categories for recurring charges you no longer use.",
	"Keep at least one month of expenses in your checking account as a buffer.",
}

// isIncome classifies a transaction by the sign of its amount, the sole
// income/expense discriminant.
func isIncome(tx domain.Transaction) bool {
	return tx.Amount >= 0
}

// expenseAttributes returns the (category, merchant) pair of an expense.
// The merchant defaults to "Unknown" when absent. Callers must guarantee
// expense records carry a category.
func expenseAttributes(tx domain.Transaction) (category, merchant string) {
	merchant = tx.MerchantName
	if merchant == "" {
		merchant = merchantUnknown
	}
	return tx.Category, merchant
}

// sumTotals folds the transaction set into the income total and the
// expense magnitude total. Both are non-negative.
func sumTotals(txns []domain.Transaction) (income, expenses float64) {
	for _, tx := range txns {
		if isIncome(tx) {
			income += tx.Amount
		} else {
			expenses += -tx.Amount
		}
	}
	return income, expenses
}

// categoryBreakdown sums expense magnitudes per category.
func categoryBreakdown(txns []domain.Transaction) map[string]float64 {
	breakdown := make(map[string]float64)
	for _, tx := range txns {
		if isIncome(tx) {
			continue
		}
		category, _ := expenseAttributes(tx)
		breakdown[category] += -tx.Amount
	}
	return breakdown
}

// rankedSpend accumulates expense magnitudes per key (keyed by keyFn) and
// returns the top entries by amount descending. The sort is stable: equal
// amounts keep their first-seen input order.
func rankedSpend(txns []domain.Transaction, keyFn func(domain.Transaction) string) []domain.MerchantSpend {
	sums := make(map[string]float64)
	order := make([]string, 0)
	for _, tx := range txns {
		if isIncome(tx) {
			continue
		}
		key := keyFn(tx)
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += -tx.Amount
	}

	ranked := make([]domain.MerchantSpend, 0, len(order))
	for _, key := range order {
		ranked = append(ranked, domain.MerchantSpend{Name: key, Amount: sums[key]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})
	if len(ranked) > topEntryLimit {
		ranked = ranked[:topEntryLimit]
	}
	return ranked
}

// topMerchants returns the top-5 merchants by summed expense magnitude.
func topMerchants(txns []domain.Transaction) []domain.MerchantSpend {
	return rankedSpend(txns, func(tx domain.Transaction) string {
		_, merchant := expenseAttributes(tx)
		return merchant
	})
}

// topCategories returns the top-5 categories by summed expense magnitude.
func topCategories(txns []domain.Transaction) []domain.CategorySpend {
	ranked := rankedSpend(txns, func(tx domain.Transaction) string {
		category, _ := expenseAttributes(tx)
		return category
	})
	out := make([]domain.CategorySpend, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, domain.CategorySpend{Category: r.Name, Amount: r.Amount})
	}
	return out
}

// monthlyTrend buckets expense magnitudes by calendar month and emits the
// buckets sorted ascending by month key. Zero-padded "2006-01" keys make
// lexicographic order chronological.
func monthlyTrend(txns []domain.Transaction) []domain.MonthSpend {
	sums := make(map[string]float64)
	for _, tx := range txns {
		if isIncome(tx) {
			continue
		}
		sums[tx.Date.Format(monthLayout)] += -tx.Amount
	}

	months := make([]string, 0, len(sums))
	for m := range sums {
		months = append(months, m)
	}
	sort.Strings(months)

	trend := make([]domain.MonthSpend, 0, len(months))
	for _, m := range months {
		trend = append(trend, domain.MonthSpend{Month: m, Amount: sums[m]})
	}
	return trend
}

// calendarGroups groups raw transactions by exact date, preserving the
// per-date insertion order of the records. Groups appear in the order
// their dates are first seen in the input, not chronologically; existing
// clients depend on that order.
func calendarGroups(txns []domain.Transaction) []domain.CalendarDay {
	index := make(map[string]int)
	days := make([]domain.CalendarDay, 0)
	for _, tx := range txns {
		key := tx.Date.Format(dayLayout)
		i, seen := index[key]
		if !seen {
			i = len(days)
			index[key] = i
			days = append(days, domain.CalendarDay{Date: key})
		}
		days[i].Transactions = append(days[i].Transactions, domain.CalendarTransaction{
			Amount:   tx.Amount,
			Name:     tx.Name,
			Category: tx.Category,
		})
	}
	return days
}

// averageDailyBalance estimates the window's average balance as the mean
// of the estimated start-of-window balance (current total plus the window's
// net transaction sum) and the end-of-window balance (current total).
// This is a first-order approximation, not a time-weighted average: it is
// only exact when every transaction in the window has already been posted
// to the reported current balances.
func averageDailyBalance(txns []domain.Transaction, accounts []domain.Account) float64 {
	var total float64
	for _, a := range accounts {
		total += a.CurrentBalance
	}

	var net float64
	for _, tx := range txns {
		net += tx.Amount
	}

	return ((total + net) + total) / 2
}

// incomeForecast projects a single income entry: the arithmetic mean of
// the window's income amounts, dated 30 calendar days after the latest
// income transaction. An empty income set yields no entries. Assumes a
// strictly monthly cadence.
func incomeForecast(txns []domain.Transaction) []domain.ForecastEntry {
	forecast := make([]domain.ForecastEntry, 0, 1)

	var sum float64
	var count int
	var latest domain.Transaction
	for _, tx := range txns {
		if !isIncome(tx) {
			continue
		}
		sum += tx.Amount
		count++
		if count == 1 || tx.Date.After(latest.Date) {
			latest = tx
		}
	}
	if count == 0 {
		return forecast
	}

	return append(forecast, domain.ForecastEntry{
		Date:   latest.Date.AddDate(0, 0, forecastLeadDays).Format(dayLayout),
		Amount: sum / float64(count),
	})
}

// incomeEntries lists the window's income transactions as a ledger.
func incomeEntries(txns []domain.Transaction) []domain.IncomeEntry {
	entries := make([]domain.IncomeEntry, 0)
	for _, tx := range txns {
		if !isIncome(tx) {
			continue
		}
		entries = append(entries, domain.IncomeEntry{
			Date:   tx.Date.Format(dayLayout),
			Amount: tx.Amount,
			Name:   tx.Name,
		})
	}
	return entries
}

// BuildAnalytics assembles the short-form analytics from a 30-day window
// of transactions and the current account set. It is a total function:
// well-formed input never produces an error.
func BuildAnalytics(txns []domain.Transaction, accounts []domain.Account) *domain.AnalyticsResult {
	income, expenses := sumTotals(txns)

	balances := make(map[string]float64, len(accounts))
	for _, a := range accounts {
		balances[a.Name] = a.CurrentBalance
	}

	return &domain.AnalyticsResult{
		IncomeSummary:     domain.AmountSummary{Total: income},
		ExpenseSummary:    domain.AmountSummary{Total: expenses},
		CashFlow:          domain.CashFlow{Net: income - expenses},
		BalanceTrend:      balances,
		TopMerchants:      topMerchants(txns),
		CategoryBreakdown: categoryBreakdown(txns),
	}
}

// BuildFinancialOverview assembles the long-form overview from a 90-day
// window. Monthly figures divide the window total by 3 (≈30-day months).
// Every division by a possibly-zero denominator degrades to 0 instead of
// failing.
func BuildFinancialOverview(txns []domain.Transaction, accounts []domain.Account) *domain.FinancialOverview {
	income, expenses := sumTotals(txns)
	monthlyIncome := income / overviewMonths
	monthlyExpenses := expenses / overviewMonths

	var balanceTotal float64
	for _, a := range accounts {
		balanceTotal += a.CurrentBalance
	}

	savingsRate := float64(0)
	if monthlyIncome > 0 {
		savingsRate = (monthlyIncome - monthlyExpenses) / monthlyIncome
	}

	return &domain.FinancialOverview{
		Income: domain.IncomeFacet{
			Total:    income,
			Entries:  incomeEntries(txns),
			Forecast: incomeForecast(txns),
		},
		Expenses: domain.ExpenseFacet{
			MonthlyTotal:  monthlyExpenses,
			TopCategories: topCategories(txns),
			Trend:         monthlyTrend(txns),
		},
		Balances: domain.BalanceFacet{
			Total:        balanceTotal,
			AverageDaily: averageDailyBalance(txns, accounts),
		},
		Budget: domain.BudgetFacet{
			MonthlyBudget:  monthlyBudget,
			RemainingRatio: (monthlyBudget - monthlyExpenses) / monthlyBudget,
		},
		Planning: domain.PlanningFacet{
			SavingsTarget:   monthlyIncome * savingsTargetRate,
			SavingsRate:     savingsRate,
			Recommendations: planningRecommendations,
		},
		Calendar: calendarGroups(txns),
	}
}
