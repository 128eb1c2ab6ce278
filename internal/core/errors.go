package core

import "errors"

// Failure taxonomy for one request. The orchestrator and its callers
// classify failures with errors.Is against these sentinels; no failure path
// is ever swallowed.
var (
	// ErrTextEmpty rejects requests whose text is empty after trimming.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrAdmissionDenied is returned when the credit budget cannot cover
	// the request. It carries no side effects.
	ErrAdmissionDenied = errors.New("admission denied")
	// ErrBackendConfig marks missing or invalid backend credentials,
	// detected before any chunk work starts.
	ErrBackendConfig = errors.New("backend configuration error")
	// ErrBackendUnavailable marks a transient backend rejection during
	// pre-flight (token issuance, connectivity).
	ErrBackendUnavailable = errors.New("synthesis backend unavailable")
	// ErrChunkSynthesis marks a failed network call for a single chunk.
	// It aborts the remaining chunks of the same request.
	ErrChunkSynthesis = errors.New("chunk synthesis failed")
	// ErrAssembly marks a failed concatenation or artifact write.
	ErrAssembly = errors.New("audio assembly failed")
	// ErrUnknownEngine rejects engine selectors outside neural/standard.
	ErrUnknownEngine = errors.New("unknown synthesis engine")
)
