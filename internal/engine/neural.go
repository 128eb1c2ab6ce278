package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/core"
	"github.com/readaloud/synthesis-service/internal/ssml"
)

// Endpoint formats for the cognitive speech service. The region is
// interpolated into both.
const (
	tokenEndpointFormat     = "https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken"
	synthesisEndpointFormat = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
)

// HTTP headers.
const (
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerOutputFormat    = "X-Microsoft-OutputFormat"
	contentTypeSSML       = "application/ssml+xml"
	outputFormatMP3       = "audio-16khz-128kbitrate-mono-mp3"
)

// NeuralBackend speaks SSML against a token-authenticated neural speech
// REST endpoint. Prepare exchanges the subscription key for a bearer
// token; Synthesize posts compiled SSML and reads back MP3 audio.
type NeuralBackend struct {
	speechKey         string
	speechRegion      string
	tokenEndpoint     string
	synthesisEndpoint string
	defaultVoice      string
	accessToken       string
	httpClient        *http.Client
	log               *logger.Logger
}

// NewNeuralBackend creates a neural backend against the region's public
// endpoints.
func NewNeuralBackend(
	cfg config.AzureConfig,
	defaultVoice string,
	httpClient *http.Client,
	log *logger.Logger,
) *NeuralBackend {
	return NewNeuralBackendWithEndpoints(
		cfg,
		defaultVoice,
		fmt.Sprintf(tokenEndpointFormat, cfg.SpeechRegion),
		fmt.Sprintf(synthesisEndpointFormat, cfg.SpeechRegion),
		httpClient,
		log,
	)
}

// NewNeuralBackendWithEndpoints creates a neural backend against explicit
// endpoints.
func NewNeuralBackendWithEndpoints(
	cfg config.AzureConfig,
	defaultVoice string,
	tokenEndpoint string,
	synthesisEndpoint string,
	httpClient *http.Client,
	log *logger.Logger,
) *NeuralBackend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &NeuralBackend{
		speechKey:         cfg.SpeechKey,
		speechRegion:      cfg.SpeechRegion,
		tokenEndpoint:     tokenEndpoint,
		synthesisEndpoint: synthesisEndpoint,
		defaultVoice:      defaultVoice,
		accessToken:       "",
		httpClient:        httpClient,
		log:               log,
	}
}

// Name identifies the backend in logs and records.
func (b *NeuralBackend) Name() string {
	return core.EngineNeural
}

// DefaultVoice is used when the request carries no voice.
func (b *NeuralBackend) DefaultVoice() string {
	return b.defaultVoice
}

// Prepare validates the credentials and fetches a bearer token. Missing
// credentials are a configuration error; a failed token exchange means the
// service is unreachable or rejecting us right now.
func (b *NeuralBackend) Prepare(ctx context.Context) error {
	if b.speechKey == "" || b.speechRegion == "" {
		return fmt.Errorf("%w: neural speech key and region must both be set", core.ErrBackendConfig)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenEndpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}

	request.Header.Set(headerSubscriptionKey, b.speechKey)

	response, err := b.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: token request failed: %w", core.ErrBackendUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"%w: token request returned status %s", core.ErrBackendUnavailable, response.Status)
	}

	token, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read token: %w", core.ErrBackendUnavailable, err)
	}

	b.accessToken = string(token)

	return nil
}

// Synthesize compiles the chunk's markup into SSML and posts it for MP3
// audio.
func (b *NeuralBackend) Synthesize(
	ctx context.Context,
	chunk string,
	req core.SynthesisRequest,
) ([]byte, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = b.defaultVoice
	}

	document := ssml.Compile(chunk, voice, req.StyleDegree, req.Prosody)

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		b.synthesisEndpoint,
		strings.NewReader(document),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	request.Header.Set(headerAuthorization, "Bearer "+b.accessToken)
	request.Header.Set(headerContentType, contentTypeSSML)
	request.Header.Set(headerOutputFormat, outputFormatMP3)

	response, err := b.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesis request failed: %w", core.ErrChunkSynthesis, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(response.Body)

		return nil, fmt.Errorf(
			"%w: synthesis returned status %s: %s",
			core.ErrChunkSynthesis, response.Status, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read audio: %w", core.ErrChunkSynthesis, err)
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: received empty audio data", core.ErrChunkSynthesis)
	}

	return audio, nil
}
