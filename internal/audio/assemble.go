// Package audio assembles per-chunk audio into a single deliverable
// artifact and manages the temporary storage chunks pass through on the
// way there.
package audio

import (
	"errors"
	"fmt"
)

// Static errors.
var (
	// ErrNoChunks is returned when assembly is attempted with no input.
	ErrNoChunks = errors.New("no audio chunks to assemble")
	// ErrEmptyChunk is returned when a chunk carries no audio data.
	ErrEmptyChunk = errors.New("audio chunk is empty")
)

// Assemble concatenates per-chunk audio byte streams, in order, into one
// playable stream.
//
// The chunks are independently encoded constant-bitrate MP3 streams, which
// tolerate frame-level concatenation without a demux/remux step. That is a
// deliberate trade: perfect frame-boundary correctness is given up to
// avoid a transcoding dependency, and the result does not generalize to
// other codecs.
func Assemble(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	total := 0

	for chunkIndex, chunk := range chunks {
		if len(chunk) == 0 {
			return nil, fmt.Errorf("%w: chunk %d", ErrEmptyChunk, chunkIndex+1)
		}

		total += len(chunk)
	}

	artifact := make([]byte, 0, total)

	for _, chunk := range chunks {
		artifact = append(artifact, chunk...)
	}

	return artifact, nil
}
