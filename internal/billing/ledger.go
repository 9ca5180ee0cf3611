package billing

import (
	"context"
	"sync"
	"time"

	"voice-agent-platform/internal/usage"
)

// Ledger is the billing view over usage and billing records.
type Ledger interface {
	ListUnbilled(ctx context.Context, from, to time.Time) ([]usage.Record, error)
	// Commit marks usageIDs billed against rec and inserts rec atomically.
	Commit(ctx context.Context, rec Record, usageIDs []string) error
}

// MemoryLedger is an in-memory Ledger over a usage.MemoryRepo. Useful in tests.
type MemoryLedger struct {
	Usage *usage.MemoryRepo

	mu      sync.Mutex
	records []Record
}

func NewMemoryLedger(u *usage.MemoryRepo) *MemoryLedger {
	return &MemoryLedger{Usage: u}
}

func (l *MemoryLedger) ListUnbilled(ctx context.Context, from, to time.Time) ([]usage.Record, error) {
	return l.Usage.ListUnbilled(ctx, from, to)
}

func (l *MemoryLedger) Commit(ctx context.Context, rec Record, usageIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.Usage.MarkBilled(ctx, usageIDs, rec.ID); err != nil {
		return err
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *MemoryLedger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// MemoryCustomers maps account ids to payment customer ids.
type MemoryCustomers map[string]string

func (m MemoryCustomers) CustomerID(_ context.Context, accountID string) (string, bool, error) {
	id, ok := m[accountID]
	return id, ok && id != "", nil
}
