package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/pricing"
	"voice-agent-platform/internal/usage"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/tracing"
)

const defaultConcurrency = 4

type DriverConfig struct {
	Ledger    Ledger
	Customers CustomerDirectory
	Payments  Payments
	Pricing   *pricing.Service

	// Locker is optional; without it concurrent runs are not prevented.
	Locker RunLocker
	// Audit is optional and best-effort.
	Audit *audit.Service

	// Concurrency bounds how many accounts are invoiced at once.
	Concurrency int
	Now         func() time.Time
}

// Driver runs monthly usage billing with per-account failure isolation.
//
// Rules:
// - Only the initial usage query (or the run lock) can fail a whole run.
// - An account's usage is marked billed only after its invoice exists.
// - One account's failure never rolls back another's.
type Driver struct {
	ledger      Ledger
	customers   CustomerDirectory
	payments    Payments
	pricing     *pricing.Service
	locker      RunLocker
	audit       *audit.Service
	concurrency int
	now         func() time.Time
	tracer      trace.Tracer
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Ledger == nil || cfg.Customers == nil || cfg.Payments == nil || cfg.Pricing == nil {
		return nil, errors.New("billing: ledger, customers, payments and pricing are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Driver{
		ledger:      cfg.Ledger,
		customers:   cfg.Customers,
		payments:    cfg.Payments,
		pricing:     cfg.Pricing,
		locker:      cfg.Locker,
		audit:       cfg.Audit,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
		tracer:      tracing.Tracer("voice-agent-platform/internal/billing"),
	}, nil
}

// RunPreviousMonth bills the calendar month before the driver's clock.
func (d *Driver) RunPreviousMonth(ctx context.Context) (Summary, error) {
	start, end := PreviousMonth(d.now())
	return d.Run(ctx, start, end)
}

// Run bills every account with unbilled usage in [start, end].
func (d *Driver) Run(ctx context.Context, start, end time.Time) (Summary, error) {
	ctx, span := d.tracer.Start(ctx, "billing.Run", trace.WithAttributes(
		attribute.String("billing.period_start", start.UTC().Format(time.RFC3339)),
		attribute.String("billing.period_end", end.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	sum, err := d.run(ctx, start.UTC(), end.UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "billing run failed")
		return sum, err
	}
	span.SetAttributes(
		attribute.Int("billing.processed", sum.Processed),
		attribute.Int("billing.skipped", sum.Skipped),
		attribute.Int("billing.failed", len(sum.Failed)),
	)
	return sum, nil
}

type accountOutcome struct {
	processed bool
	skipped   bool
	record    Record
	failure   *AccountFailure
}

func (d *Driver) run(ctx context.Context, start, end time.Time) (Summary, error) {
	sum := Summary{PeriodStart: start, PeriodEnd: end, Failed: []AccountFailure{}}
	if err := validatePeriod(start, end); err != nil {
		return sum, err
	}

	log := logger.From(ctx).With("period_start", start.Format("2006-01-02"))

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, runLockKey(start))
		if err != nil {
			return sum, err
		}
		defer release()
	}

	records, err := d.ledger.ListUnbilled(ctx, start, end)
	if err != nil {
		return sum, err
	}
	groups := usage.GroupByAccount(records)
	log.Info("billing run started", "accounts", len(groups), "usage_records", len(records))

	outcomes := make([]accountOutcome, len(groups))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, grp := range groups {
		g.Go(func() error {
			outcomes[i] = d.billAccount(ctx, start, end, grp)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch {
		case o.failure != nil:
			sum.Failed = append(sum.Failed, *o.failure)
		case o.skipped:
			sum.Skipped++
		case o.processed:
			sum.Processed++
			sum.Billed = append(sum.Billed, o.record)
		}
	}

	log.Info("billing run finished", "processed", sum.Processed, "skipped", sum.Skipped, "failed", len(sum.Failed))
	return sum, nil
}

// billAccount runs one account's sequential sub-flow: price, invoice item,
// invoice, then the ledger commit.
func (d *Driver) billAccount(ctx context.Context, start, end time.Time, grp usage.AccountUsage) accountOutcome {
	log := logger.From(ctx).With("account_id", grp.AccountID)
	fail := func(stage string, err error) accountOutcome {
		log.Error("account billing failed", "stage", stage, "error", err.Error())
		return accountOutcome{failure: &AccountFailure{AccountID: grp.AccountID, Stage: stage, Error: err.Error()}}
	}

	charge := d.pricing.Price(grp.TotalMinutes)
	if charge.IsZero() {
		log.Info("account skipped", "reason", "zero_charge", "total_minutes", grp.TotalMinutes.String())
		return accountOutcome{skipped: true}
	}

	customerID, ok, err := d.customers.CustomerID(ctx, grp.AccountID)
	if err != nil {
		return fail(StageCustomerLookup, err)
	}
	if !ok {
		log.Warn("account skipped", "reason", "no_payment_customer", "amount_minor", charge.AmountMinor)
		return accountOutcome{skipped: true}
	}

	if err := ctx.Err(); err != nil {
		return fail(StageInvoiceItem, err)
	}

	key := IdempotencyKey(grp.AccountID, start)
	desc := PeriodDescription(start)
	md := map[string]string{
		"account_id":   grp.AccountID,
		"period_start": start.Format("2006-01-02"),
	}

	if _, err := d.payments.CreateInvoiceItem(ctx, InvoiceItemRequest{
		CustomerID:     customerID,
		AmountMinor:    charge.AmountMinor,
		Currency:       charge.Currency,
		Description:    desc,
		IdempotencyKey: key + ":item",
		Metadata:       md,
	}); err != nil {
		return fail(StageInvoiceItem, err)
	}

	inv, err := d.payments.CreateInvoice(ctx, InvoiceRequest{
		CustomerID:     customerID,
		Description:    desc,
		IdempotencyKey: key + ":invoice",
		Metadata:       md,
	})
	if err != nil {
		return fail(StageInvoice, err)
	}

	rec := Record{
		ID:          uuid.NewString(),
		AccountID:   grp.AccountID,
		AmountMinor: charge.AmountMinor,
		Currency:    charge.Currency,
		InvoiceID:   inv.ID,
		Status:      StatusPending,
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   d.now().UTC(),
	}

	// The invoice exists now; the commit must not be abandoned on cancellation.
	if err := d.ledger.Commit(context.WithoutCancel(ctx), rec, grp.RecordIDs); err != nil {
		log.Error("invoice created but usage not marked billed",
			"alert", true,
			"invoice_id", inv.ID,
			"idempotency_key", key,
			"error", err.Error(),
		)
		return fail(StageCommit, err)
	}

	log.Info("account billed", "billing_record_id", rec.ID, "invoice_id", inv.ID, "amount_minor", rec.AmountMinor)
	d.auditBilled(ctx, rec, len(grp.RecordIDs))
	return accountOutcome{processed: true, record: rec}
}

func (d *Driver) auditBilled(ctx context.Context, rec Record, usageCount int) {
	if d.audit == nil {
		return
	}
	md, _ := json.Marshal(map[string]any{
		"invoice_id":   rec.InvoiceID,
		"amount_minor": rec.AmountMinor,
		"currency":     rec.Currency,
		"usage_count":  usageCount,
	})
	if err := d.audit.LogBilling(ctx, rec.AccountID, rec.ID, "usage invoiced", string(md)); err != nil {
		logger.From(ctx).Warn("audit append failed", "account_id", rec.AccountID, "error", err.Error())
	}
}
