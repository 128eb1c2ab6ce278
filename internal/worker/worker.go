// Package worker provides a NATS worker that processes synthesis jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/readaloud/synthesis-service/internal/core"
)

const handleMessageTimeout = 5 * time.Minute

// ErrUserIDEmpty indicates that the requesting user is missing from the event.
var ErrUserIDEmpty = errors.New("user id cannot be empty")

// ErrTextKeyEmpty indicates that the event names no source text object.
var ErrTextKeyEmpty = errors.New("text key cannot be empty")

// SynthesisRequestedEvent asks the worker to synthesize the text stored
// under TextKey on behalf of UserID.
type SynthesisRequestedEvent struct {
	Header      events.EventHeader `json:"header"`
	UserID      string             `json:"user_id"`
	TextKey     string             `json:"text_key"`
	VoiceID     string             `json:"voice_id,omitempty"`
	Engine      string             `json:"engine,omitempty"`
	StyleDegree float64            `json:"style_degree,omitempty"`
	Rate        string             `json:"rate,omitempty"`
	Pitch       string             `json:"pitch,omitempty"`
}

// SynthesisCompletedEvent reports where the assembled artifact was stored
// and what produced it. Error is set instead of AudioKey when the request
// failed.
type SynthesisCompletedEvent struct {
	Header     events.EventHeader `json:"header"`
	AudioKey   string             `json:"audio_key,omitempty"`
	ByteLength int                `json:"byte_length,omitempty"`
	ChunkCount int                `json:"chunk_count,omitempty"`
	Engine     string             `json:"engine,omitempty"`
	Voice      string             `json:"voice,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Converter runs one synthesis request end to end.
type Converter interface {
	Convert(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error)
}

// TextStore reads submitted source texts.
type TextStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	texts          TextStore
	converter      Converter
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	texts TextStore,
	converter Converter,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		texts:          texts,
		converter:      converter,
		log:            log,
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	result, processErr := w.processSynthesisJob(ctx, event)
	if processErr != nil {
		w.log.Error(
			"Failed to process synthesis job for workflow %s: %v",
			event.Header.WorkflowID, processErr)

		w.respond(msg, &SynthesisCompletedEvent{
			Header:     event.Header,
			AudioKey:   "",
			ByteLength: 0,
			ChunkCount: 0,
			Engine:     "",
			Voice:      "",
			Error:      processErr.Error(),
		})

		return
	}

	w.respond(msg, &SynthesisCompletedEvent{
		Header:     event.Header,
		AudioKey:   result.Location,
		ByteLength: result.ByteLength,
		ChunkCount: result.ChunkCount,
		Engine:     result.Engine,
		Voice:      result.Voice,
		Error:      "",
	})
}

// processSynthesisJob downloads the source text and runs it through the
// conversion pipeline.
func (w *NatsWorker) processSynthesisJob(
	ctx context.Context,
	event *SynthesisRequestedEvent,
) (*core.SynthesisResult, error) {
	textData, err := w.texts.Download(ctx, event.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	request := core.SynthesisRequest{
		UserID:      event.UserID,
		Text:        string(textData),
		VoiceID:     event.VoiceID,
		Engine:      event.Engine,
		StyleDegree: event.StyleDegree,
		Prosody: core.Prosody{
			Rate:  event.Rate,
			Pitch: event.Pitch,
		},
	}

	result, convertErr := w.converter.Convert(ctx, request)
	if convertErr != nil {
		return nil, fmt.Errorf("failed to convert text to speech: %w", convertErr)
	}

	return result, nil
}

// respond marshals the completion event and replies on the message's reply
// subject.
func (w *NatsWorker) respond(msg *nats.Msg, replyEvent *SynthesisCompletedEvent) {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error(
			"Failed to marshal reply event for workflow %s: %v",
			replyEvent.Header.WorkflowID, err)

		return
	}

	respondErr := msg.Respond(replyData)
	if respondErr != nil {
		w.log.Error(
			"Failed to publish reply event for workflow %s: %v",
			replyEvent.Header.WorkflowID, respondErr)
	}
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*SynthesisRequestedEvent, error) {
	var event SynthesisRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.UserID == "" {
		return nil, ErrUserIDEmpty
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
