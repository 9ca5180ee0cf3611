package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - account_id is required for tenancy isolation.
// - audit is best-effort; do not block deployments or billing on audit failures.
//
// Storage (Postgres): table audit_events with an INSERT-only policy.
type Event struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	AgentID         string `json:"agent_id,omitempty" db:"agent_id"`
	BillingRecordID string `json:"billing_record_id,omitempty" db:"billing_record_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction EventType = "admin_action"
	EventTypeDeployment  EventType = "deployment"
	EventTypeBilling     EventType = "billing"
)
