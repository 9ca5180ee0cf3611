package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voice-agent-platform/internal/audit"
	"voice-agent-platform/internal/auth"
	"voice-agent-platform/internal/config"
	"voice-agent-platform/internal/deployment"
	"voice-agent-platform/internal/httpapi"
	"voice-agent-platform/internal/sipgateway"
	"voice-agent-platform/internal/telephony"
	"voice-agent-platform/internal/usage"
	"voice-agent-platform/pkg/logger"
	"voice-agent-platform/pkg/tracing"
	"voice-agent-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := tracing.Setup(rootCtx, "voice-agent-api", cfg.Tracing.OTLPEndpoint)
	if err != nil {
		log.Error("tracing init failed", "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	gateway, err := sipgateway.NewLiveKitGateway(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	if err != nil {
		log.Error("gateway init failed", "err", err)
		os.Exit(1)
	}
	locker, err := deployment.NewRedisLocker(rdb, cfg.Deploy.LockTTL)
	if err != nil {
		log.Error("deploy lock init failed", "err", err)
		os.Exit(1)
	}
	orchestrator, err := deployment.NewOrchestrator(
		deployment.NewRepository(db),
		telephony.NewTwilioCarrier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken),
		gateway,
		locker,
		deployment.MultiSink{deployment.LogSink{}, deployment.AuditSink{Audit: auditSvc}},
		deployment.Options{
			SIPURI:      cfg.LiveKit.SIPURI,
			CallTimeout: cfg.Deploy.CallTimeout,
		},
	)
	if err != nil {
		log.Error("orchestrator init failed", "err", err)
		os.Exit(1)
	}

	driver, err := newBillingDriver(cfg, db, rdb, auditSvc)
	if err != nil {
		log.Error("billing init failed", "err", err)
		os.Exit(1)
	}

	h := httpapi.Handlers{
		Deployments: orchestrator,
		Usage:       usage.NewService(usage.NewPostgresRepo(db)),
		Billing:     driver,
		Audit:       auditSvc,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Deploy runs several provider calls plus compensation.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "err", err)
	}
}
