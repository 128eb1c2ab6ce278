package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/core"
)

// PollyClient is the slice of the Polly client the backend uses. Tests
// substitute a fake.
type PollyClient interface {
	SynthesizeSpeech(
		ctx context.Context,
		params *polly.SynthesizeSpeechInput,
		optFns ...func(*polly.Options),
	) (*polly.SynthesizeSpeechOutput, error)
}

// StandardBackend sends plain text to AWS Polly's standard engine. Markup
// control tags are not interpreted; the text is spoken as-is.
type StandardBackend struct {
	accessKeyID     string
	secretAccessKey string
	region          string
	defaultVoice    string
	client          PollyClient
	log             *logger.Logger
}

// NewStandardBackend creates a Polly-backed standard backend.
func NewStandardBackend(cfg config.PollyConfig, defaultVoice string, log *logger.Logger) *StandardBackend {
	backend := &StandardBackend{
		accessKeyID:     cfg.AccessKeyID,
		secretAccessKey: cfg.SecretAccessKey,
		region:          cfg.Region,
		defaultVoice:    defaultVoice,
		client:          nil,
		log:             log,
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" && cfg.Region != "" {
		backend.client = polly.New(polly.Options{
			Region: cfg.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		})
	}

	return backend
}

// NewStandardBackendWithClient creates a standard backend over an explicit
// Polly client.
func NewStandardBackendWithClient(
	client PollyClient,
	defaultVoice string,
	log *logger.Logger,
) *StandardBackend {
	return &StandardBackend{
		accessKeyID:     "set",
		secretAccessKey: "set",
		region:          "set",
		defaultVoice:    defaultVoice,
		client:          client,
		log:             log,
	}
}

// Name identifies the backend in logs and records.
func (b *StandardBackend) Name() string {
	return core.EngineStandard
}

// DefaultVoice is used when the request carries no voice.
func (b *StandardBackend) DefaultVoice() string {
	return b.defaultVoice
}

// Prepare validates the credentials. Polly has no token exchange, so
// configuration is the only thing that can be checked up front.
func (b *StandardBackend) Prepare(_ context.Context) error {
	if b.client == nil {
		return fmt.Errorf(
			"%w: standard engine credentials and region must all be set", core.ErrBackendConfig)
	}

	return nil
}

// Synthesize sends the chunk as plain text and reads back MP3 audio.
func (b *StandardBackend) Synthesize(
	ctx context.Context,
	chunk string,
	req core.SynthesisRequest,
) ([]byte, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = b.defaultVoice
	}

	output, err := b.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(chunk),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(voice),
		Engine:       types.EngineStandard,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: synthesis request failed: %w", core.ErrChunkSynthesis, err)
	}

	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio stream: %w", core.ErrChunkSynthesis, err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: received empty audio data", core.ErrChunkSynthesis)
	}

	return audio, nil
}
