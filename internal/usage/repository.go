package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voice-agent-platform/pkg/utils"
)

// NOTE: This repository assumes the following table exists:
//
//	usage_records (
//	  id uuid PRIMARY KEY, account_id text NOT NULL, agent_id text,
//	  duration_minutes numeric NOT NULL, timestamp timestamptz NOT NULL,
//	  billed boolean NOT NULL DEFAULT false, billing_record_id uuid NULL
//	)
//
// plus an index on (billed, timestamp).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO usage_records (id, account_id, agent_id, duration_minutes, timestamp, billed)
VALUES ($1,$2,$3,$4,$5,false)
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.AccountID,
		utils.NullString(rec.AgentID),
		rec.DurationMinutes,
		rec.Timestamp,
	)
	return err
}

// ListUnbilled returns unbilled records with timestamp in [from, to].
func (r *PostgresRepo) ListUnbilled(ctx context.Context, from, to time.Time) ([]Record, error) {
	const q = `
SELECT id, account_id, agent_id, duration_minutes, timestamp
FROM usage_records
WHERE billed = false AND timestamp >= $1 AND timestamp <= $2
ORDER BY account_id, timestamp
`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec   Record
			agent sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &agent, &rec.DurationMinutes, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.AgentID = agent.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkBilledTx flips the given records to billed inside tx. It fails with
// ErrAlreadyBilled if any record was billed concurrently, so the caller's
// transaction rolls back as a whole.
func MarkBilledTx(ctx context.Context, tx *sql.Tx, ids []string, billingRecordID string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `
UPDATE usage_records
SET billed = true, billing_record_id = $2
WHERE id = ANY($1) AND billed = false
`
	res, err := tx.ExecContext(ctx, q, ids, billingRecordID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("%w: marked %d of %d", ErrAlreadyBilled, n, len(ids))
	}
	return nil
}
