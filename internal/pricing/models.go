package pricing

import "github.com/shopspring/decimal"

// Charge is the priced total for one account's usage in one period.
// Amounts are expressed in minor units (e.g., cents) using int64.
type Charge struct {
	Currency      string          `json:"currency"`
	TotalMinutes  decimal.Decimal `json:"total_minutes"`
	RatePerMinute decimal.Decimal `json:"rate_per_minute"`
	AmountMinor   int64           `json:"amount_minor"`
}

// IsZero reports whether the charge rounds to nothing billable.
func (c Charge) IsZero() bool { return c.AmountMinor <= 0 }
