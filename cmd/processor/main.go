package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/login-stream-processor/internal/adapter/api"
	kafkaadapter "github.com/user/login-stream-processor/internal/adapter/kafka"
	"github.com/user/login-stream-processor/internal/adapter/metrics"
	"github.com/user/login-stream-processor/internal/pkg/config"
	"github.com/user/login-stream-processor/internal/pkg/logger"
	"github.com/user/login-stream-processor/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting login stream processor")

	m := metrics.NewPipelineMetrics()

	loopCfg := usecase.LoopConfig{
		MaxBatchSize:     cfg.MaxBatchSize,
		CommitInterval:   cfg.CommitInterval,
		FlushInterval:    cfg.FlushInterval,
		MaxFetchFailures: cfg.MaxConsecutiveFailures,
		FetchBackoff:     cfg.FetchBackoff,
		ShutdownGrace:    cfg.ShutdownGrace,
	}

	// The loop legitimately goes quiet for a full poll plus its largest
	// fetch backoff; liveness must not flag that as a stall.
	probe := api.NewProbe(2 * (cfg.PollTimeout + loopCfg.MaxBackoff()))

	// --- Admin & Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	probe.Register(adminMux)

	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: adminMux,
	}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshots published by this instance are keyed by its identity.
	instanceID, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for instance id, using default", "error", err)
		instanceID = "login-processor"
	}

	// --- Stream Handles ---
	source := kafkaadapter.NewSource(cfg.KafkaBrokers, cfg.InputTopic, cfg.ConsumerGroup, cfg.PollTimeout, log)
	publisher := kafkaadapter.NewPublisher(
		cfg.KafkaBrokers,
		cfg.EnrichedTopic,
		cfg.AggregateTopic,
		instanceID,
		cfg.PublishBufferSize,
		cfg.MaxConsecutiveFailures,
		m,
		log,
	)

	// --- Processing Loop ---
	window := usecase.NewAggregationWindow(time.Now())
	processor := usecase.NewProcessEventsUseCase(source, publisher, window, probe, m, log, loopCfg)

	log.Info("processor started, consuming events",
		"topic", cfg.InputTopic,
		"group", cfg.ConsumerGroup,
		"instance", instanceID,
		"brokers", cfg.KafkaBrokers,
	)

	runErr := processor.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	if runErr != nil {
		log.Error("processor exited with failure", "error", runErr)
		os.Exit(1)
	}
	log.Info("processor shut down gracefully")
}
