package deployment

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store useful for tests and local runs.
// It is not intended for production use.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Deployment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Deployment{}}
}

// Put seeds or replaces an agent record.
func (r *MemoryRepo) Put(d Deployment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.AgentID] = d
}

func (r *MemoryRepo) Get(ctx context.Context, agentID string) (Deployment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[agentID]
	if !ok {
		return Deployment{}, ErrNotFound
	}
	if d.LastDeployedAt != nil {
		t := *d.LastDeployedAt
		d.LastDeployedAt = &t
	}
	return d, nil
}

func (r *MemoryRepo) SetDeployed(ctx context.Context, agentID, trunkID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[agentID]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	d.Deployed = true
	d.SIPTrunkID = trunkID
	d.LastDeployedAt = &at
	r.byID[agentID] = d
	return nil
}

func (r *MemoryRepo) ClearDeployed(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[agentID]
	if !ok {
		return ErrNotFound
	}
	d.Deployed = false
	d.SIPTrunkID = ""
	r.byID[agentID] = d
	return nil
}
