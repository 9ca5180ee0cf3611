package deployment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-agent-platform/pkg/utils"
)

// NOTE: This repository assumes the agents table exists and is owned by the
// agent CRUD surface:
//
//	agents (
//	  id text PRIMARY KEY, account_id text NOT NULL, business_name text NOT NULL,
//	  phone_number text, custom_instructions text, initiate_conversation boolean,
//	  initial_message text, document_namespace text,
//	  deployed boolean NOT NULL DEFAULT false, sip_trunk_id text, last_deployed_at timestamptz
//	)
//
// Only the deployed/sip_trunk_id/last_deployed_at columns are written here.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Get(ctx context.Context, agentID string) (Deployment, error) {
	const q = `
SELECT id, account_id, business_name, phone_number, custom_instructions, initiate_conversation,
       initial_message, document_namespace, deployed, sip_trunk_id, last_deployed_at
FROM agents
WHERE id = $1
`
	var (
		d            Deployment
		phone        sql.NullString
		instructions sql.NullString
		initiate     sql.NullBool
		initialMsg   sql.NullString
		namespace    sql.NullString
		trunk        sql.NullString
		lastDeployed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, agentID).Scan(
		&d.AgentID,
		&d.AccountID,
		&d.Config.BusinessName,
		&phone,
		&instructions,
		&initiate,
		&initialMsg,
		&namespace,
		&d.Deployed,
		&trunk,
		&lastDeployed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deployment{}, ErrNotFound
		}
		return Deployment{}, err
	}

	d.PhoneNumber = phone.String
	d.Config.CustomInstructions = instructions.String
	d.Config.InitiateConversation = initiate.Bool
	d.Config.InitialMessage = initialMsg.String
	d.Config.DocumentNamespace = namespace.String
	d.SIPTrunkID = trunk.String
	if lastDeployed.Valid {
		t := lastDeployed.Time
		d.LastDeployedAt = &t
	}
	return d, nil
}

func (r *Repository) SetDeployed(ctx context.Context, agentID, trunkID string, at time.Time) error {
	const q = `
UPDATE agents
SET deployed = true, sip_trunk_id = $2, last_deployed_at = $3
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, agentID, utils.NullString(trunkID), at.UTC())
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *Repository) ClearDeployed(ctx context.Context, agentID string) error {
	const q = `
UPDATE agents
SET deployed = false, sip_trunk_id = NULL
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, agentID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
