// Package worker_test tests the NATS worker for the synthesis service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/readaloud/synthesis-service/internal/core"
	"github.com/readaloud/synthesis-service/internal/worker"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockDownload = errors.New("mock download error")
	errMockConvert  = errors.New("mock convert error")
)

// mockTextStore is a mock implementation of the TextStore interface.
type mockTextStore struct {
	downloadShouldFail bool
	downloadedKey      string
}

func (m *mockTextStore) Download(_ context.Context, key string) ([]byte, error) {
	if m.downloadShouldFail {
		return nil, errMockDownload
	}

	m.downloadedKey = key

	return []byte("sample text"), nil
}

// mockConverter is a mock implementation of the Converter interface.
type mockConverter struct {
	convertShouldFail bool
	converted         core.SynthesisRequest
}

func (m *mockConverter) Convert(
	_ context.Context,
	req core.SynthesisRequest,
) (*core.SynthesisResult, error) {
	if m.convertShouldFail {
		return nil, errMockConvert
	}

	m.converted = req

	return &core.SynthesisResult{
		Audio:      []byte("sample audio"),
		ByteLength: len("sample audio"),
		ChunkCount: 1,
		Engine:     "neural",
		Voice:      "en-US-JennyNeural",
		Location:   "sample-audio.mp3",
	}, nil
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		server.Shutdown()
		natsConnection.Close()
	}

	return natsConnection, cleanup
}

func setupTest(t *testing.T) (
	*worker.NatsWorker,
	*mockTextStore,
	*mockConverter,
	context.Context,
	context.CancelFunc,
	*nats.Conn,
) {
	t.Helper()

	mockTexts := &mockTextStore{
		downloadShouldFail: false,
		downloadedKey:      "",
	}
	converter := &mockConverter{
		convertShouldFail: false,
		converted:         core.SynthesisRequest{},
	}

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	workerInstance := worker.NewNatsWorker(
		natsConnection, "test_subject", mockTexts, converter, testLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())

	return workerInstance, mockTexts, converter, ctx, cancel, natsConnection
}

func newTestHeader() events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     "",
		TenantID:   "",
	}
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	workerInstance, mockTexts, converter, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := &worker.SynthesisRequestedEvent{
		Header:      newTestHeader(),
		UserID:      "user-1",
		TextKey:     "test-text-key",
		VoiceID:     "en-US-GuyNeural",
		Engine:      "neural",
		StyleDegree: 1.5,
		Rate:        "90",
		Pitch:       "-2",
	}
	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var replyEvent worker.SynthesisCompletedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Equal(t, "test-text-key", mockTexts.downloadedKey)
	assert.Equal(t, "user-1", converter.converted.UserID)
	assert.Equal(t, "sample text", converter.converted.Text)
	assert.Equal(t, "en-US-GuyNeural", converter.converted.VoiceID)
	assert.InEpsilon(t, 1.5, converter.converted.StyleDegree, 1e-9)
	assert.Equal(t, "90", converter.converted.Prosody.Rate)
	assert.Equal(t, "-2", converter.converted.Prosody.Pitch)

	assert.Equal(t, "sample-audio.mp3", replyEvent.AudioKey)
	assert.Equal(t, 1, replyEvent.ChunkCount)
	assert.Equal(t, "neural", replyEvent.Engine)
	assert.Empty(t, replyEvent.Error)
	assert.Equal(t, testEvent.Header.WorkflowID, replyEvent.Header.WorkflowID)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestMessageHandler_ConvertFailureReportsError(t *testing.T) {
	t.Parallel()

	workerInstance, _, converter, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	converter.convertShouldFail = true

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := &worker.SynthesisRequestedEvent{
		Header:      newTestHeader(),
		UserID:      "user-1",
		TextKey:     "test-text-key",
		VoiceID:     "",
		Engine:      "",
		StyleDegree: 0,
		Rate:        "",
		Pitch:       "",
	}
	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	replyMsg, err := natsConnection.Request("test_subject", eventData, 5*time.Second)
	require.NoError(t, err)

	var replyEvent worker.SynthesisCompletedEvent

	err = json.Unmarshal(replyMsg.Data, &replyEvent)
	require.NoError(t, err)

	assert.Empty(t, replyEvent.AudioKey)
	assert.Contains(t, replyEvent.Error, "mock convert error")

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}

func TestMessageHandler_RejectsEventWithoutUser(t *testing.T) {
	t.Parallel()

	workerInstance, mockTexts, _, ctx, cancel, natsConnection := setupTest(t)
	defer cancel()

	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	testEvent := &worker.SynthesisRequestedEvent{
		Header:      newTestHeader(),
		UserID:      "",
		TextKey:     "test-text-key",
		VoiceID:     "",
		Engine:      "",
		StyleDegree: 0,
		Rate:        "",
		Pitch:       "",
	}
	eventData, err := json.Marshal(testEvent)
	require.NoError(t, err)

	// Invalid events are dropped without a reply.
	_, err = natsConnection.Request("test_subject", eventData, 500*time.Millisecond)
	require.Error(t, err)

	assert.Empty(t, mockTexts.downloadedKey)

	cancel()

	shutdownErr := <-errChan
	assert.NoError(t, shutdownErr)
}
