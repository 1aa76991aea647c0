// Package main provides the entry point for the property analysis
// orchestrator: the HTTP API, the reply listener, and the timeout sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estateai/property-analysis-service/internal/config"
	"github.com/estateai/property-analysis-service/internal/database"
	"github.com/estateai/property-analysis-service/internal/llm"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/orchestrator"
	"github.com/estateai/property-analysis-service/internal/selector"
	httpserver "github.com/estateai/property-analysis-service/internal/server/http"
	"github.com/estateai/property-analysis-service/internal/store"
	"github.com/estateai/property-analysis-service/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "orchestrator").Logger()
	logger.Info().Msg("property-analysis-service orchestrator starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	metrics := observability.NewMetrics("estate_orchestrator")
	pending := store.NewPgStore(db.Pool())

	// Kafka transport: one shared sender, one reply listener.
	sender := transport.NewKafkaSender(transport.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
	}, logger)
	defer func() {
		if closeErr := sender.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close kafka sender")
		}
	}()

	listener := transport.NewKafkaListener(transport.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Orchestrator.InboundAddress,
		GroupID: cfg.Kafka.GroupID,
	}, logger)
	defer func() {
		if closeErr := listener.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close kafka listener")
		}
	}()

	// LLM-backed worker selector.
	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:       cfg.LLM.Provider,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RateLimitRPS:   cfg.LLM.RateLimitRPS,
		RateLimitBurst: cfg.LLM.RateLimitBurst,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	logger.Info().
		Str("provider", llmClient.Provider()).
		Str("model", llmClient.Model()).
		Msg("LLM client initialized")

	sel := selector.NewLLMSelector(llmClient, cfg.Orchestrator.WorkerKeys(), logger)

	// Orchestration core.
	aggregator := orchestrator.NewAggregator(orchestrator.CanonicalWorkerOrder)
	dispatcher := orchestrator.NewDispatcher(
		pending, sender, sel,
		cfg.Orchestrator.Workers,
		cfg.Orchestrator.InboundAddress,
		logger, metrics,
	)
	engine := orchestrator.NewEngine(
		pending, sender, aggregator,
		cfg.Orchestrator.Workers,
		logger, metrics,
	)
	sweeper := orchestrator.NewSweeper(
		pending, engine,
		cfg.Orchestrator.SweepInterval,
		cfg.Orchestrator.Deadline,
		logger, metrics,
	)

	// HTTP API.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, dispatcher, pending, db, logger)

	// Prometheus metrics on a separate port.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	errCh := make(chan error, 4)

	// Reply listener feeds the correlation engine.
	go func() {
		if err := listener.Run(ctx, engine.HandleEnvelope); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("reply listener error: %w", err)
		}
	}()

	// Timeout sweeper force-completes expired requests.
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("sweeper error: %w", err)
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("http_address", httpCfg.Address).
		Str("inbound_address", cfg.Orchestrator.InboundAddress).
		Dur("deadline", cfg.Orchestrator.Deadline)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("orchestrator is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down orchestrator")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("orchestrator shutdown complete")
	return nil
}
