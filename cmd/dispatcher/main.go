package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/textmesh/sms-dispatch/internal/dispatch/app"
	"github.com/textmesh/sms-dispatch/internal/dispatch/gateway"
	"github.com/textmesh/sms-dispatch/internal/dispatch/repository/postgres"
	transporthttp "github.com/textmesh/sms-dispatch/internal/dispatch/transport/http"
	"github.com/textmesh/sms-dispatch/internal/platform/config"
	"github.com/textmesh/sms-dispatch/internal/platform/database"
	"github.com/textmesh/sms-dispatch/internal/platform/logger"
	"github.com/textmesh/sms-dispatch/internal/platform/messagebroker"
	"github.com/textmesh/sms-dispatch/internal/platform/scheduler"
)

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("SMS dispatcher starting...",
		"log_level", cfg.LogLevel,
		"outbound_scheduler_enabled", cfg.EnableOutboundScheduler,
		"max_batch_size", cfg.MaxBatchSize)

	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	dbPool, err := database.NewDBPool(appCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL database")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, "sms-dispatcher", appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	repo := postgres.NewPgOutboundMessageRepository(dbPool, appLogger)

	cred := gateway.Credential{SystemID: cfg.GatewaySystemID, Password: cfg.GatewayPassword}
	clientCache := gateway.NewClientCache(cfg.GatewayAPIURL, nil, appLogger)
	gatewayAdapter := gateway.NewAdapter(clientCache, cred, cfg.CallbackBaseURL, appLogger)
	appLogger.Info("Gateway adapter initialized",
		"api_url", cfg.GatewayAPIURL, "credential_fingerprint", cred.Fingerprint())

	jobCfg := app.JobConfig{Enabled: cfg.EnableOutboundScheduler, MaxBatchSize: cfg.MaxBatchSize}
	dispatchJob := app.NewDispatchJob(repo, gatewayAdapter, jobCfg, appLogger)
	reconcileJob := app.NewReconciliationJob(repo, gatewayAdapter, natsClient, jobCfg, appLogger)

	runner := scheduler.NewRunner(appLogger)
	runner.Schedule(appCtx, dispatchJob, cfg.DispatchInterval)
	runner.Schedule(appCtx, reconcileJob, cfg.ReconcileInterval)

	validate := validator.New()
	reportHandler := transporthttp.NewReportHandler(repo, natsClient, appLogger, validate)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(transporthttp.PrometheusMetricsMiddleware)
	r.Handle("/metrics", promhttp.Handler())
	reportHandler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		appLogger.Info("Callback HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed", "error", err)
			cancelAppCtx()
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case receivedSignal := <-quitChan:
		appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())
	case <-appCtx.Done():
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP server shutdown failed", "error", err)
	}

	runner.Wait()
	appLogger.Info("SMS dispatcher shut down successfully.")
}
