package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-agent-platform/internal/usage"
	"voice-agent-platform/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
//
//	billing_records (
//	  id uuid PRIMARY KEY, account_id text NOT NULL, amount_minor bigint NOT NULL,
//	  currency text NOT NULL, invoice_id text NOT NULL, status text NOT NULL,
//	  period_start timestamptz NOT NULL, period_end timestamptz NOT NULL,
//	  created_at timestamptz NOT NULL
//	)
//	accounts (id text PRIMARY KEY, stripe_customer_id text NULL, ...)
//
// and usage_records as described in internal/usage.
type PostgresLedger struct {
	db    *sql.DB
	usage *usage.PostgresRepo
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db, usage: usage.NewPostgresRepo(db)}
}

func (l *PostgresLedger) ListUnbilled(ctx context.Context, from, to time.Time) ([]usage.Record, error) {
	return l.usage.ListUnbilled(ctx, from, to)
}

func (l *PostgresLedger) Commit(ctx context.Context, rec Record, usageIDs []string) error {
	return utils.WithTx(ctx, l.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return err
		}
		return usage.MarkBilledTx(ctx, tx, usageIDs, rec.ID)
	})
}

func insertRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	const q = `
INSERT INTO billing_records (
  id, account_id, amount_minor, currency, invoice_id, status, period_start, period_end, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err := tx.ExecContext(ctx, q,
		r.ID,
		r.AccountID,
		r.AmountMinor,
		r.Currency,
		r.InvoiceID,
		string(r.Status),
		r.PeriodStart,
		r.PeriodEnd,
		r.CreatedAt,
	)
	return err
}

// PostgresCustomers reads the payment customer reference from accounts.
type PostgresCustomers struct {
	db *sql.DB
}

func NewPostgresCustomers(db *sql.DB) *PostgresCustomers { return &PostgresCustomers{db: db} }

func (c *PostgresCustomers) CustomerID(ctx context.Context, accountID string) (string, bool, error) {
	const q = `SELECT stripe_customer_id FROM accounts WHERE id = $1`
	var id sql.NullString
	if err := c.db.QueryRowContext(ctx, q, accountID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id.String, id.Valid && id.String != "", nil
}
