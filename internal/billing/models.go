package billing

import "time"

// Record is one invoice-generation event for one account and one period.
//
// Invariants:
// - AmountMinor is derived from the sum of its usage records at a fixed rate.
// - Created once per account per run, only for a non-zero charge and a known customer.
// - Status transitions after creation are driven by payment webhooks elsewhere.
type Record struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	AmountMinor int64     `json:"amount_minor" db:"amount_minor"`
	Currency    string    `json:"currency" db:"currency"`
	InvoiceID   string    `json:"invoice_id" db:"invoice_id"`
	Status      Status    `json:"status" db:"status"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time `json:"period_end" db:"period_end"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Summary is the outcome of one billing run.
type Summary struct {
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	Processed   int              `json:"processed"`
	Skipped     int              `json:"skipped"`
	Failed      []AccountFailure `json:"failed"`
	Billed      []Record         `json:"billed,omitempty"`
}

type AccountFailure struct {
	AccountID string `json:"account_id"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

// Failure stages.
const (
	StageCustomerLookup = "customer_lookup"
	StageInvoiceItem    = "invoice_item"
	StageInvoice        = "invoice"
	StageCommit         = "commit"
)
