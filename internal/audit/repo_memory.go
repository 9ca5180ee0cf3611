package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo keeps audit events in process. Used by tests and local runs
// where no database is wired.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of every event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// ForAccount returns the account's events in append order, optionally
// narrowed to the given types.
func (r *MemoryRepo) ForAccount(accountID string, types ...EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.AccountID != accountID {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out
}
