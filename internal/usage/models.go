package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one metered phone call attributed to an account.
//
// Invariants:
// - Once Billed is true the record is immutable and BillingRecordID is set.
// - Records are never deleted.
type Record struct {
	ID              string          `json:"id" db:"id"`
	AccountID       string          `json:"account_id" db:"account_id"`
	AgentID         string          `json:"agent_id,omitempty" db:"agent_id"`
	DurationMinutes decimal.Decimal `json:"duration_minutes" db:"duration_minutes"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	Billed          bool            `json:"billed" db:"billed"`
	BillingRecordID string          `json:"billing_record_id,omitempty" db:"billing_record_id"`
}

// AccountUsage is the unbilled usage of one account within a period.
type AccountUsage struct {
	AccountID    string
	RecordIDs    []string
	TotalMinutes decimal.Decimal
}
