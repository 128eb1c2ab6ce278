// main package for the synthesis-service
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/credits"
	"github.com/readaloud/synthesis-service/internal/engine"
	"github.com/readaloud/synthesis-service/internal/objectstore"
	"github.com/readaloud/synthesis-service/internal/pipeline"
	"github.com/readaloud/synthesis-service/internal/records"
	"github.com/readaloud/synthesis-service/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "synthesis-service-bootstrap.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

// serve wires the stores, backends, and pipeline together and runs the
// worker until a shutdown signal arrives.
func serve(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	texts, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create text object store: %w", err)
	}

	artifacts, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create audio object store: %w", err)
	}

	plans := credits.NewStaticPlanStore(cfg.Plans)

	accounts, err := credits.NewNatsAccountStore(
		jetstreamContext, cfg.NATS.AccountBucket, plans.DefaultPlanName())
	if err != nil {
		return fmt.Errorf("failed to create account store: %w", err)
	}

	sink, err := records.NewNatsRecordSink(jetstreamContext, cfg.NATS.RecordsBucket)
	if err != nil {
		return fmt.Errorf("failed to create record sink: %w", err)
	}

	meter := credits.NewMeter(plans, accounts, log)

	neural := engine.NewNeuralBackend(
		cfg.Azure, cfg.Synthesis.DefaultNeuralVoice, http.DefaultClient, log)
	standard := engine.NewStandardBackend(
		cfg.Polly, cfg.Synthesis.DefaultStandardVoice, log)
	registry := engine.NewRegistry(cfg.Synthesis.DefaultEngine, neural, standard)

	converter := pipeline.New(
		meter,
		registry,
		artifacts,
		sink,
		cfg.Synthesis.ChunkLimit,
		time.Duration(cfg.Synthesis.TimeoutSeconds)*time.Second,
		log,
	)

	synthesisWorker := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SynthesisSubject, texts, converter, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.System(
		"Synthesis service successfully initialized. Listening for jobs on subject: %s",
		cfg.NATS.SynthesisSubject)

	runErr := synthesisWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped with error: %w", runErr)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
