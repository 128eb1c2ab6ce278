// main package for the synthesis-client, a command-line submitter for
// synthesis jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/objectstore"
	"github.com/readaloud/synthesis-service/internal/worker"
)

// Flag descriptions.
const (
	flagTextDesc        = "Text to convert to speech"
	flagUserDesc        = "User identifier to bill the request against"
	flagVoiceDesc       = "Voice to synthesize with (backend default when empty)"
	flagEngineDesc      = "Engine to use: neural or standard (default engine when empty)"
	flagStyleDegreeDesc = "Style intensity multiplier for [style:] markup sections"
	flagRateDesc        = "Speech rate: keyword (medium) or numeric percentage (85)"
	flagPitchDesc       = "Speech pitch: keyword (medium) or numeric semitones (-2)"
	flagOutputDesc      = "Local file to download the synthesized MP3 to"
	flagTimeoutDesc     = "Seconds to wait for the synthesis reply"
)

// Flag names.
const (
	flagText        = "text"
	flagUser        = "user"
	flagVoice       = "voice"
	flagEngine      = "engine"
	flagStyleDegree = "style-degree"
	flagRate        = "rate"
	flagPitch       = "pitch"
	flagOutput      = "output"
	flagTimeout     = "timeout"
)

// Defaults and file naming.
const (
	defaultTimeoutSeconds = 120
	textKeySuffix         = ".txt"
	logFileName           = "synthesis-client.log"
	outputPermissions     = 0o644
)

// Error messages.
const (
	errTextRequired = "-text must be provided"
	errUserRequired = "-user must be provided"
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text        string
	user        string
	voice       string
	engine      string
	styleDegree float64
	rate        string
	pitch       string
	output      string
	timeout     int
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	if flags.text == "" {
		flag.Usage()

		return errors.New(errTextRequired)
	}

	if flags.user == "" {
		flag.Usage()

		return errors.New(errUserRequired)
	}

	bootstrapLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer bootstrapLog.Close()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return submit(cfg, bootstrapLog, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.user, flagUser, "", flagUserDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.engine, flagEngine, "", flagEngineDesc)
	flag.Float64Var(&flags.styleDegree, flagStyleDegree, 0, flagStyleDegreeDesc)
	flag.StringVar(&flags.rate, flagRate, "", flagRateDesc)
	flag.StringVar(&flags.pitch, flagPitch, "", flagPitchDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.IntVar(&flags.timeout, flagTimeout, defaultTimeoutSeconds, flagTimeoutDesc)
	flag.Parse()

	return flags
}

// submit uploads the text, publishes the synthesis request, and waits for
// the completion reply.
func submit(cfg *config.Config, appLog *logger.Logger, flags appFlags) error {
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

	ctx := context.Background()
	textKey := uuid.NewString() + textKeySuffix

	uploadErr := texts.Upload(ctx, textKey, []byte(flags.text))
	if uploadErr != nil {
		return fmt.Errorf("failed to upload text: %w", uploadErr)
	}

	appLog.Info("Uploaded %d bytes of text as '%s'", len(flags.text), textKey)

	event := worker.SynthesisRequestedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now().UTC(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     flags.user,
			TenantID:   "",
		},
		UserID:      flags.user,
		TextKey:     textKey,
		VoiceID:     flags.voice,
		Engine:      flags.engine,
		StyleDegree: flags.styleDegree,
		Rate:        flags.rate,
		Pitch:       flags.pitch,
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal request event: %w", err)
	}

	timeout := time.Duration(flags.timeout) * time.Second

	replyMsg, err := natsConnection.Request(cfg.NATS.SynthesisSubject, eventData, timeout)
	if err != nil {
		return fmt.Errorf("synthesis request failed: %w", err)
	}

	var reply worker.SynthesisCompletedEvent

	err = json.Unmarshal(replyMsg.Data, &reply)
	if err != nil {
		return fmt.Errorf("failed to unmarshal reply event: %w", err)
	}

	if reply.Error != "" {
		return fmt.Errorf("synthesis failed: %s", reply.Error)
	}

	fmt.Printf(
		"Synthesized %d bytes in %d chunks via %s voice %s: %s\n",
		reply.ByteLength, reply.ChunkCount, reply.Engine, reply.Voice, reply.AudioKey)

	if flags.output == "" {
		return nil
	}

	return download(ctx, cfg, jetstreamContext, reply.AudioKey, flags.output)
}

// download fetches the stored artifact and writes it to the local path.
func download(
	ctx context.Context,
	cfg *config.Config,
	jetstreamContext nats.JetStreamContext,
	audioKey string,
	outputPath string,
) error {
	artifacts, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create audio object store: %w", err)
	}

	audioData, err := artifacts.Download(ctx, audioKey)
	if err != nil {
		return fmt.Errorf("failed to download artifact '%s': %w", audioKey, err)
	}

	writeErr := os.WriteFile(outputPath, audioData, outputPermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write output file '%s': %w", outputPath, writeErr)
	}

	fmt.Printf("Saved: %s\n", outputPath)

	return nil
}
