package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/book-expert/logger"
)

// File naming and permissions for spooled chunks.
const (
	spoolDirPattern = "synthesis-chunks-*"
	chunkFileFormat = "chunk_%04d.mp3"
	filePermissions = 0o600
)

// ErrDuplicateChunkIndex is returned when the same chunk index is spooled
// twice.
var ErrDuplicateChunkIndex = errors.New("duplicate chunk index")

// Spool holds per-chunk audio in a request-scoped temporary directory
// between synthesis and assembly. Callers must invoke Cleanup on every
// exit path, typically via defer, so a failed request never leaks chunk
// files.
type Spool struct {
	dir     string
	indexes []int
	log     *logger.Logger
}

// NewSpool creates a fresh temporary directory for one request's chunks.
func NewSpool(log *logger.Logger) (*Spool, error) {
	dir, err := os.MkdirTemp("", spoolDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	return &Spool{
		dir:     dir,
		indexes: nil,
		log:     log,
	}, nil
}

// Add writes the audio for one chunk to the spool under its index.
func (s *Spool) Add(index int, data []byte) error {
	for _, existing := range s.indexes {
		if existing == index {
			return fmt.Errorf("%w: %d", ErrDuplicateChunkIndex, index)
		}
	}

	writeErr := os.WriteFile(s.chunkPath(index), data, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to spool chunk %d: %w", index, writeErr)
	}

	s.indexes = append(s.indexes, index)

	return nil
}

// Collect reads every spooled chunk back in ascending chunk order,
// regardless of the order they were added in.
func (s *Spool) Collect() ([][]byte, error) {
	ordered := make([]int, len(s.indexes))
	copy(ordered, s.indexes)
	sort.Ints(ordered)

	chunks := make([][]byte, 0, len(ordered))

	for _, index := range ordered {
		data, readErr := os.ReadFile(s.chunkPath(index))
		if readErr != nil {
			return nil, fmt.Errorf("failed to read spooled chunk %d: %w", index, readErr)
		}

		chunks = append(chunks, data)
	}

	return chunks, nil
}

// Len reports how many chunks are currently spooled.
func (s *Spool) Len() int {
	return len(s.indexes)
}

// Cleanup removes the spool directory and everything in it. Safe to call
// after both success and failure.
func (s *Spool) Cleanup() {
	removeErr := os.RemoveAll(s.dir)
	if removeErr != nil {
		s.log.Warn("Failed to remove spool directory '%s': %v", s.dir, removeErr)
	}
}

func (s *Spool) chunkPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf(chunkFileFormat, index))
}
