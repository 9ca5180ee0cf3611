package usage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory usage store useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]Record{}}
}

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("usage: duplicate record %s", rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) ListUnbilled(ctx context.Context, from, to time.Time) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Billed || rec.Timestamp.Before(from) || rec.Timestamp.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// MarkBilled is all-or-nothing: if any id is unknown or already billed nothing changes.
func (r *MemoryRepo) MarkBilled(ctx context.Context, ids []string, billingRecordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		rec, ok := r.records[id]
		if !ok {
			return fmt.Errorf("usage: unknown record %s", id)
		}
		if rec.Billed {
			return fmt.Errorf("%w: %s", ErrAlreadyBilled, id)
		}
	}
	for _, id := range ids {
		rec := r.records[id]
		rec.Billed = true
		rec.BillingRecordID = billingRecordID
		r.records[id] = rec
	}
	return nil
}

// Get returns a record by id.
func (r *MemoryRepo) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}
