// Command billing runs one usage billing pass for the previous calendar month
// and exits. It is meant to be scheduled once a month.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/billing"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/pricing"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/tracing"
	"voice-agent-platform/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		return 1
	}

	log := logger.New(cfg.App.Env, "billing")
	slog.SetDefault(log)
	ctx := logger.With(rootCtx, log)

	shutdownTracing, err := tracing.Setup(ctx, "voice-agent-billing", cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Error("tracing init failed", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: cfg.Billing.Concurrency + 2})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		return 1
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		return 1
	}
	defer rdb.Close()

	price, err := pricing.NewService(cfg.Billing.RatePerMinute, cfg.Billing.Currency)
	if err != nil {
		log.Error("pricing init failed", "err", err)
		return 1
	}

	driver, err := billing.NewDriver(billing.DriverConfig{
		Ledger:      billing.NewPostgresLedger(db),
		Customers:   billing.NewPostgresCustomers(db),
		Payments:    billing.NewStripePayments(cfg.Stripe.SecretKey),
		Pricing:     price,
		Locker:      billing.NewRedisRunLocker(rdb, 0),
		Audit:       audit.NewService(audit.NewPostgresRepo(db)),
		Concurrency: cfg.Billing.Concurrency,
	})
	if err != nil {
		log.Error("billing init failed", "err", err)
		return 1
	}

	sum, err := driver.RunPreviousMonth(ctx)
	if err != nil {
		log.Error("billing run failed", "err", err)
		return 1
	}
	for _, f := range sum.Failed {
		log.Error("account not billed", "account_id", f.AccountID, "stage", f.Stage, "error", f.Error)
	}
	log.Info("billing run complete",
		"period_start", sum.PeriodStart.Format(time.RFC3339),
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"failed", len(sum.Failed),
	)
	if len(sum.Failed) > 0 {
		return 2
	}
	return 0
}
