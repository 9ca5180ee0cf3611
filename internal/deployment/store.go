package deployment

import (
	"context"
	"time"
)

// Store is the keyed read/update contract over agent deployment state.
// It only reflects what the orchestrator believes is true; there is no
// transaction spanning the external systems.
type Store interface {
	Get(ctx context.Context, agentID string) (Deployment, error)
	SetDeployed(ctx context.Context, agentID, trunkID string, at time.Time) error
	ClearDeployed(ctx context.Context, agentID string) error
}
