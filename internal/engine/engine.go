// Package engine provides speech synthesis backends and the registry that
// selects between them.
//
// Two backends are available: the neural backend speaks SSML against a
// token-authenticated REST endpoint, and the standard backend sends plain
// text to AWS Polly. Both produce MP3 audio so their chunks concatenate
// into a single artifact.
package engine

import (
	"context"
	"fmt"

	"github.com/readaloud/synthesis-service/internal/core"
)

// SpeechBackend converts one text chunk into MP3 audio.
//
// Prepare validates configuration and acquires any credentials the backend
// needs; it distinguishes configuration problems (core.ErrBackendConfig)
// from transient outages (core.ErrBackendUnavailable) so callers can decide
// whether retrying is worthwhile.
type SpeechBackend interface {
	// Name identifies the backend in logs and records.
	Name() string

	// DefaultVoice is used when the request carries no voice.
	DefaultVoice() string

	// Prepare validates configuration and readies the backend for
	// Synthesize calls.
	Prepare(ctx context.Context) error

	// Synthesize converts one chunk to MP3 audio.
	Synthesize(ctx context.Context, chunk string, req core.SynthesisRequest) ([]byte, error)
}

// Registry maps engine names to backends and applies the default when a
// request names none.
type Registry struct {
	backends      map[string]SpeechBackend
	defaultEngine string
}

// NewRegistry builds a registry over the given backends. defaultEngine is
// used for requests that leave the engine blank; when it is itself blank,
// the neural engine is the default.
func NewRegistry(defaultEngine string, backends ...SpeechBackend) *Registry {
	if defaultEngine == "" {
		defaultEngine = core.EngineNeural
	}

	registry := &Registry{
		backends:      make(map[string]SpeechBackend, len(backends)),
		defaultEngine: defaultEngine,
	}

	for _, backend := range backends {
		registry.backends[backend.Name()] = backend
	}

	return registry
}

// ForRequest resolves the backend for the requested engine name. An empty
// name selects the default engine; an unknown name is a request error, not
// a fallback.
func (r *Registry) ForRequest(engineName string) (SpeechBackend, error) {
	if engineName == "" {
		engineName = r.defaultEngine
	}

	backend, found := r.backends[engineName]
	if !found {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownEngine, engineName)
	}

	return backend, nil
}
