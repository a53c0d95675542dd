// Command accessctl runs the access-control backend: the attempt-intake and
// rule-CRUD HTTP APIs, the outbox dispatcher, the audit consumer, and the
// policy-change cache-invalidation consumer, all sharing one Postgres pool
// and one NATS JetStream connection. Horizontal scale comes from running
// more instances, each with its own instance id.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accessapi "accessctl/internal/access/api"
	accessapp "accessctl/internal/access/application"
	"accessctl/internal/audit/consumer"
	"accessctl/internal/audit/dlq"
	auditpg "accessctl/internal/audit/postgres"
	"accessctl/internal/common/bus"
	"accessctl/internal/common/clock"
	"accessctl/internal/common/config"
	"accessctl/internal/common/dbx"
	"accessctl/internal/common/ids"
	"accessctl/internal/common/logging"
	"accessctl/internal/common/metrics"
	"accessctl/internal/common/types"
	directorypg "accessctl/internal/directory/postgres"
	"accessctl/internal/outbox/dispatcher"
	outboxpg "accessctl/internal/outbox/postgres"
	"accessctl/internal/outbox/sender"
	"accessctl/internal/rules/api"
	"accessctl/internal/rules/cache"
	"accessctl/internal/rules/policyconsumer"
	rulespg "accessctl/internal/rules/postgres"
	"accessctl/internal/rules/service"
	tenancypg "accessctl/internal/tenancy/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = ids.NewV4()
	}

	startupCtx := logging.WithInstanceID(logging.WithCorrelationID(context.Background(), types.NewCorrelationID()), instanceID)
	logging.InfoContext(startupCtx, "starting accessctl", "port", cfg.Port, "environment", cfg.Environment, "instance_id", instanceID)

	pool, err := cfg.NewPostgresPool(startupCtx)
	if err != nil {
		logging.ErrorContext(startupCtx, "failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	busLog := slog.Default().With("component", "bus")
	busClient, err := bus.Connect(cfg.BusURL, busLog)
	if err != nil {
		logging.ErrorContext(startupCtx, "failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	if err := busClient.ProvisionStreams(); err != nil {
		logging.ErrorContext(startupCtx, "failed to provision bus streams", "error", err)
		os.Exit(1)
	}

	clk := clock.System{}
	atomic := dbx.NewAtomicExecutor(pool)

	tenancyRepo := tenancypg.NewRepository(pool)
	zones := tenancypg.NewZoneProvider(tenancyRepo, func(orgID types.OrgID) {
		metrics.RecordTimezoneFallback()
		logging.Warn("organization timezone missing or invalid, falling back to UTC", "org_id", orgID.String())
	})
	devices := directorypg.NewDeviceRepository(pool)
	ruleStore := rulespg.NewRuleStore(pool)
	candidatesCache := cache.NewCandidatesCache(ruleStore)

	accessService := accessapp.New(atomic, pool, devices, tenancyRepo, zones, candidatesCache, clk)
	rulesService := service.New(atomic, ruleStore, devices, candidatesCache, clk)

	outboxRepo := outboxpg.NewRepository(pool, pool)
	lockTTL := time.Duration(cfg.OutboxLockTTLSeconds) * time.Second

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(pool, outboxRepo, lockTTL))
	mux.Handle("GET /metrics", metrics.Handler())
	accessapi.NewHandler(accessService).RegisterRoutes(mux)
	api.NewHandler(rulesService).RegisterRoutes(mux)

	handler := metrics.Middleware(correlationMiddleware(mux))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	natsSender := sender.NewNATSSender(busClient, 5*time.Second)
	dispatcherCfg := dispatcher.Config{
		DispatchEvery:    time.Duration(cfg.OutboxDispatchEveryMS) * time.Millisecond,
		MaintenanceEvery: time.Duration(cfg.OutboxMaintenanceEveryS) * time.Second,
		LockTTL:          lockTTL,
		BatchSize:        cfg.OutboxBatchSize,
		MaxAttempts:      cfg.OutboxMaxAttempts,
		MaxRetryBackoff:  time.Duration(cfg.OutboxMaxRetryBackoffSec) * time.Second,
		InstanceID:       instanceID,
	}
	outboxDispatcher := dispatcher.New(outboxRepo, natsSender, dispatcherCfg, clk, slog.Default().With("component", "outbox_dispatcher"))
	go outboxDispatcher.Run(runCtx)

	auditRepo := auditpg.NewRepository(pool)
	dlqRepo := dlq.NewRepository(pool)
	dlqPublisher := dlq.NewPublisher(busClient, 5*time.Second)
	auditConsumer := consumer.New(busClient, auditRepo, dlqRepo, dlqPublisher, clk, 50)
	if err := auditConsumer.Start(runCtx); err != nil {
		logging.ErrorContext(startupCtx, "failed to start audit consumer", "error", err)
		os.Exit(1)
	}

	policyConsumer := policyconsumer.New(busClient, candidatesCache, 20)
	if err := policyConsumer.Start(runCtx); err != nil {
		logging.ErrorContext(startupCtx, "failed to start policy-change consumer", "error", err)
		os.Exit(1)
	}

	reprocessor := dlq.NewReprocessor(dlqRepo, dlqPublisher, auditConsumer.ReplayEvent, clk, 20)
	go reprocessor.RunLoop(runCtx, 5*time.Minute)

	go func() {
		logging.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logging.Info("server stopped")
}

const requestTimeout = 5 * time.Second

// correlationMiddleware propagates or mints a correlation id and tenant id
// per request and bounds handler execution time.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := types.CorrelationID(r.Header.Get("X-Correlation-ID"))
		if corrID.IsEmpty() {
			corrID = types.NewCorrelationID()
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		ctx = logging.WithCorrelationID(ctx, corrID)
		if orgID := r.PathValue("orgId"); orgID != "" {
			ctx = logging.WithOrgID(ctx, types.OrgID(orgID))
		}

		w.Header().Set("X-Correlation-ID", corrID.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Readiness thresholds: too many terminal failures, a ready event nobody
// picked up for two minutes, or a lock held past its TTL grace all mean this
// node (or the cluster it shares the table with) is no longer draining the
// outbox and should stop taking traffic.
const (
	readyMaxFailed     = 50
	readyMaxReadyAge   = 120 * time.Second
	readyInflightGrace = 30 * time.Second
)

// readyHandler pings the database and evaluates the outbox failure taxonomy.
func readyHandler(pool interface {
	Ping(ctx context.Context) error
}, outboxRepo *outboxpg.Repository, lockTTL time.Duration) http.HandlerFunc {
	notReady := func(w http.ResponseWriter, reason string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": reason})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			notReady(w, "database unreachable: "+err.Error())
			return
		}

		now := time.Now().UTC()
		counts, err := outboxRepo.CountByStatus(r.Context(), now, lockTTL)
		if err != nil {
			notReady(w, "outbox status unavailable: "+err.Error())
			return
		}
		if counts.Failed >= readyMaxFailed {
			notReady(w, fmt.Sprintf("outbox has %d FAILED events", counts.Failed))
			return
		}

		ages, err := outboxRepo.OldestAges(r.Context(), now, lockTTL)
		if err != nil {
			notReady(w, "outbox ages unavailable: "+err.Error())
			return
		}
		if ages.OldestReady > readyMaxReadyAge {
			notReady(w, fmt.Sprintf("oldest ready outbox event is %s old", ages.OldestReady.Round(time.Second)))
			return
		}
		if ages.OldestInflight > lockTTL+readyInflightGrace {
			notReady(w, fmt.Sprintf("oldest in-flight outbox lock is %s old", ages.OldestInflight.Round(time.Second)))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}
