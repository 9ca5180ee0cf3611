package main

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/billing"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/pricing"
)

func newBillingDriver(cfg config.Config, db *sql.DB, rdb redis.UniversalClient, auditSvc *audit.Service) (*billing.Driver, error) {
	price, err := pricing.NewService(cfg.Billing.RatePerMinute, cfg.Billing.Currency)
	if err != nil {
		return nil, err
	}
	return billing.NewDriver(billing.DriverConfig{
		Ledger:      billing.NewPostgresLedger(db),
		Customers:   billing.NewPostgresCustomers(db),
		Payments:    billing.NewStripePayments(cfg.Stripe.SecretKey),
		Pricing:     price,
		Locker:      billing.NewRedisRunLocker(rdb, 0),
		Audit:       auditSvc,
		Concurrency: cfg.Billing.Concurrency,
	})
}
