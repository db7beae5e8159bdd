package domain

import "time"

// Transaction is a single account transaction inside the fetched window.
// The sign of Amount is the sole income/expense discriminant:
// positive = inflow (income), negative = outflow (expense).
type Transaction struct {
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"date"`
	Name         string    `json:"name"`
	MerchantName string    `json:"merchant_name,omitempty"`
	Category     string    `json:"category"`
}

// Account is a linked financial account with its reported current balance.
type Account struct {
	Name           string  `json:"name"`
	CurrentBalance float64 `json:"current_balance"`
}

// Institution is a financial institution returned by the provider search.
type Institution struct {
	Code string `json:"code"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}
