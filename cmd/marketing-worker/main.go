package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	marketingadapter "github.com/ajayykmr/shortcode-marketing-go/internal/adapters/marketing"
	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/kafka/consumer"
	"github.com/ajayykmr/shortcode-marketing-go/internal/kafka/producer"
	kafkapublisher "github.com/ajayykmr/shortcode-marketing-go/internal/kafka/publisher"
	"github.com/ajayykmr/shortcode-marketing-go/internal/logger"
	"github.com/ajayykmr/shortcode-marketing-go/internal/metrics"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/factory"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
	"github.com/ajayykmr/shortcode-marketing-go/internal/worker"
	marketingvalidator "github.com/ajayykmr/shortcode-marketing-go/internal/worker/validator/marketing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "marketing-worker").Logger()

	recorder := metrics.NewRecorder()

	prod, err := producer.New(cfg.Kafka.Brokers, logger.Component(log, "kafka-producer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.ConsumerGroup, logger.Component(log, "kafka-consumer"), cfg.Retry.CommitOnSuccessOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	statusPublisher := kafkapublisher.NewStatusPublisher(prod, cfg.Topics.Status, logger.Component(log, "status-publisher"))
	dlqPublisher := kafkapublisher.NewDLQPublisher(prod, cfg.Topics.DLQ, logger.Component(log, "dlq-publisher"))

	providerTimeout := time.Duration(cfg.Timeouts.ProviderTimeoutSeconds) * time.Second
	transport, err := factory.Transport(cfg.Providers, providerTimeout, logger.Component(log, "shortcode-transport"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise short-code transport")
	}
	sender, err := shortcode.NewSender(transport)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise short-code sender")
	}

	adapter, err := marketingadapter.NewAdapter(sender, logger.Component(log, "marketing-adapter"), marketingadapter.WithMetrics(recorder))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise marketing adapter")
	}

	validator := marketingvalidator.New(cfg.Validation, logger.Component(log, "marketing-validator"))

	engine, err := worker.NewEngine(worker.Config{
		Channel:           models.ChannelMarketingSMS,
		MsgMaxBytes:       cfg.Validation.MsgMaxBytes,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseBackoff:       time.Duration(cfg.Retry.BaseBackoffSeconds) * time.Second,
		MaxBackoff:        time.Duration(cfg.Retry.MaxBackoffSeconds) * time.Second,
		WorkerConcurrency: cfg.Retry.WorkerConcurrency,
		SendTimeout:       providerTimeout,
	}, worker.Dependencies{
		Adapter:         adapter,
		Validator:       validator,
		StatusPublisher: statusPublisher,
		DLQPublisher:    dlqPublisher,
		Committer:       worker.RecordCommitter,
		Metrics:         recorder,
		Logger:          log,
		Now:             time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise worker engine")
	}

	opsServer := metrics.NewServer(cfg.App.Port, metrics.Router(recorder, map[string]metrics.ReadinessCheck{
		"kafka_consumer": cons.IsReady,
		"kafka_producer": prod.IsReady,
	}), logger.Component(log, "ops-server"))
	opsServer.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := cons.Consume(ctx, []string{cfg.Topics.Request}, worker.KafkaHandler(engine, cons)); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("request_topic", cfg.Topics.Request).
		Str("provider", cfg.Providers.Backend).
		Msg("marketing worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := cons.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka consumer")
	}
	engine.Wait()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop ops server")
	}
	log.Info().Msg("marketing worker stopped")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("marketing worker init failed")
}
