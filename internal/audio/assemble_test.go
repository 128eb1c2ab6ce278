// Package audio_test tests audio assembly and chunk spooling.
package audio_test

import (
	"os"
	"testing"

	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "audio-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		closeErr := log.Close()
		if closeErr != nil {
			t.Logf("failed to close test logger: %v", closeErr)
		}
	})

	return log
}

func TestAssembleConcatenatesInOrder(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}

	artifact, err := audio.Assemble(chunks)
	require.NoError(t, err)

	assert.Equal(t, []byte("first-second-third"), artifact)
}

func TestAssembleRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := audio.Assemble(nil)
	require.ErrorIs(t, err, audio.ErrNoChunks)
}

func TestAssembleRejectsEmptyChunk(t *testing.T) {
	t.Parallel()

	_, err := audio.Assemble([][]byte{[]byte("ok"), {}, []byte("ok")})
	require.ErrorIs(t, err, audio.ErrEmptyChunk)
	assert.Contains(t, err.Error(), "chunk 2")
}

func TestSpoolRoundTrip(t *testing.T) {
	t.Parallel()

	log := createTestLogger(t)

	spool, err := audio.NewSpool(log)
	require.NoError(t, err)

	defer spool.Cleanup()

	// Out-of-order adds must still collect in chunk order.
	require.NoError(t, spool.Add(2, []byte("two")))
	require.NoError(t, spool.Add(1, []byte("one")))
	require.NoError(t, spool.Add(3, []byte("three")))

	assert.Equal(t, 3, spool.Len())

	chunks, err := spool.Collect()
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, []byte("one"), chunks[0])
	assert.Equal(t, []byte("two"), chunks[1])
	assert.Equal(t, []byte("three"), chunks[2])
}

func TestSpoolRejectsDuplicateIndex(t *testing.T) {
	t.Parallel()

	log := createTestLogger(t)

	spool, err := audio.NewSpool(log)
	require.NoError(t, err)

	defer spool.Cleanup()

	require.NoError(t, spool.Add(1, []byte("one")))

	err = spool.Add(1, []byte("again"))
	require.ErrorIs(t, err, audio.ErrDuplicateChunkIndex)
}

func TestSpoolCleanupRemovesDirectory(t *testing.T) {
	t.Parallel()

	log := createTestLogger(t)

	spool, err := audio.NewSpool(log)
	require.NoError(t, err)

	require.NoError(t, spool.Add(1, []byte("one")))

	spool.Cleanup()

	_, err = spool.Collect()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
