// Package main provides the entry point for a property specialist worker.
// One process serves one worker key, set via ESTATE_SPECIALIST_KEY.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estateai/property-analysis-service/internal/config"
	"github.com/estateai/property-analysis-service/internal/listings"
	"github.com/estateai/property-analysis-service/internal/llm"
	"github.com/estateai/property-analysis-service/internal/observability"
	"github.com/estateai/property-analysis-service/internal/specialist"
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

	if cfg.Specialist.Key == "" {
		return fmt.Errorf("ESTATE_SPECIALIST_KEY is required")
	}
	profile, err := specialist.ProfileFor(cfg.Specialist.Key)
	if err != nil {
		return err
	}

	address := cfg.Specialist.Address
	if address == "" {
		// Fall back to the orchestrator's registry entry for this key.
		address = cfg.Orchestrator.Workers[profile.Key]
	}
	if address == "" {
		return fmt.Errorf("no transport address configured for worker key %q", profile.Key)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "specialist").Str("worker_key", profile.Key).Logger()
	logger.Info().Str("address", address).Msg("property specialist starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("estate_specialist")

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

	source, err := listings.NewClient(listings.Config{
		BaseURL:   cfg.Listings.BaseURL,
		APIKey:    cfg.Listings.APIKey,
		Timeout:   cfg.Listings.Timeout,
		RateLimit: cfg.Listings.RateLimit,
		BurstSize: cfg.Listings.BurstSize,
	})
	if err != nil {
		return fmt.Errorf("create listings client: %w", err)
	}

	sender := transport.NewKafkaSender(transport.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
	}, logger)
	defer func() {
		if closeErr := sender.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close kafka sender")
		}
	}()

	// Each worker key gets its own consumer group so specialists scale
	// horizontally per key without stealing each other's sub-requests.
	listener := transport.NewKafkaListener(transport.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   address,
		GroupID: cfg.Specialist.GroupID + "-" + profile.Key,
	}, logger)
	defer func() {
		if closeErr := listener.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close kafka listener")
		}
	}()

	worker := specialist.NewWorker(profile, address, llmClient, source, sender, logger, metrics)

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

	errCh := make(chan error, 2)

	go func() {
		if err := listener.Run(ctx, worker.HandleEnvelope); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("listener error: %w", err)
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

	logger.Info().Msg("specialist is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("worker error")
		return err
	}

	logger.Info().Msg("shutting down specialist")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("specialist shutdown complete")
	return nil
}
