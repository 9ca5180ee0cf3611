package audit

import (
	"context"
	"database/sql"
	"errors"

	"voice-agent-platform/pkg/utils"
)

// PostgresRepo appends audit events to the audit_events table.
//
// NOTE: assumes
//
//	CREATE TABLE audit_events (
//	  id uuid PRIMARY KEY, account_id text NOT NULL, type text NOT NULL,
//	  actor_user_id text, actor_role text, ip_address text,
//	  agent_id text, billing_record_id text,
//	  message text, metadata jsonb, created_at timestamptz NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	if r.db == nil {
		return errors.New("audit: db is nil")
	}
	const q = `
INSERT INTO audit_events (
  id, account_id, type, actor_user_id, actor_role, ip_address, agent_id, billing_record_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.AccountID,
		string(e.Type),
		utils.NullString(e.ActorUserID),
		utils.NullString(e.ActorRole),
		utils.NullString(e.IPAddress),
		utils.NullString(e.AgentID),
		utils.NullString(e.BillingRecordID),
		utils.NullString(e.Message),
		utils.NullString(e.Metadata),
		e.CreatedAt,
	)
	return err
}
