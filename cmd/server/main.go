package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strataops/vantage/internal/agentrpc"
	"github.com/strataops/vantage/internal/api"
	"github.com/strataops/vantage/internal/buildconfig"
	"github.com/strataops/vantage/internal/config"
	"github.com/strataops/vantage/internal/coordinator"
	"github.com/strataops/vantage/internal/liveness"
	"github.com/strataops/vantage/internal/metricsrc"
	"github.com/strataops/vantage/internal/quality"
	"github.com/strataops/vantage/internal/registry"
	"github.com/strataops/vantage/internal/rollout"
	"github.com/strataops/vantage/internal/router"
	"github.com/strataops/vantage/internal/store"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger := newLogger(config.LogLevel())
	defer func() { _ = logger.Sync() }()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	// Liveness tracker
	tracker, err := liveness.NewTracker(config.LivenessBackend(), config.RedisAddr())
	if err != nil {
		logger.Fatal("failed to initialize liveness tracker", zap.Error(err))
	}
	logger.Info("liveness tracker initialized", zap.String("backend", config.LivenessBackend()))

	// Rollout policy
	policy, err := config.LoadRolloutPolicy(config.RolloutPolicyPath())
	if err != nil {
		logger.Fatal("failed to load rollout policy", zap.Error(err))
	}

	// Metrics source
	metricsSource, err := metricsrc.NewSource(config.MetricsProvider(), config.MetricsBaseURL(), config.AgentRPCTimeout())
	if err != nil {
		logger.Fatal("failed to initialize metrics source", zap.Error(err))
	}
	logger.Info("metrics source initialized", zap.String("provider", config.MetricsProvider()))

	// Stores
	agentStore := store.NewAgentStore(pool)
	proposalStore := store.NewProposalStore(pool)
	planStore := store.NewPlanStore(pool)
	phaseStore := store.NewPhaseStore(pool)

	// Core components
	livenessPolicy := registry.Policy{
		HeartbeatInterval: config.HeartbeatInterval(),
		MissedThreshold:   config.MissedThreshold(),
		EvictAfter:        config.EvictAfter(),
	}
	reg := registry.New(tracker, agentStore, livenessPolicy, logger)
	monitor := registry.NewMonitor(reg, logger)
	monitor.SetInterval(config.MonitorInterval())

	rt := router.New(reg, logger)
	agentClient := agentrpc.NewClient(config.AgentRPCTimeout())
	qualityMonitor := quality.NewMonitor(metricsSource, policy, logger)
	engine := rollout.NewEngine(planStore, phaseStore, reg, agentClient, qualityMonitor, policy, logger)
	coord := coordinator.New(rt, agentClient, proposalStore, planStore, config.CoordinationWindow(), logger)

	app := api.NewApp(api.Deps{
		DB:          pool,
		Registry:    reg,
		Monitor:     monitor,
		Router:      rt,
		Coordinator: coord,
		Engine:      engine,
		Proposals:   proposalStore,
		Plans:       planStore,
		Phases:      phaseStore,
		APIKey:      config.OperatorAPIKey(),
	}, logger)

	// Start background services
	app.Monitor.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.Version()),
			zap.String("commit", buildconfig.Commit()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services and let running rollouts finish their
	// bookkeeping before the pool closes.
	app.Monitor.Stop()
	app.Engine.Drain()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
