// Package pipeline orchestrates one synthesis request end to end: admit
// against the credit budget, segment the text, synthesize every chunk,
// assemble the artifact, then charge and record.
//
// Billing is all-or-nothing. The charge lands only after the complete
// artifact has been assembled and stored; any chunk failure aborts the
// request with the account untouched.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/audio"
	"github.com/readaloud/synthesis-service/internal/core"
	"github.com/readaloud/synthesis-service/internal/credits"
	"github.com/readaloud/synthesis-service/internal/engine"
	"github.com/readaloud/synthesis-service/internal/text"
)

// Pipeline wires the synthesis stages together.
type Pipeline struct {
	meter       *credits.Meter
	backends    *engine.Registry
	artifacts   core.ArtifactStore
	sink        core.PersistenceSink
	chunkLimit  int
	callTimeout time.Duration
	log         *logger.Logger
}

// New creates a pipeline. chunkLimit caps the characters per backend call;
// callTimeout bounds each individual synthesis call, not the whole request.
func New(
	meter *credits.Meter,
	backends *engine.Registry,
	artifacts core.ArtifactStore,
	sink core.PersistenceSink,
	chunkLimit int,
	callTimeout time.Duration,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		meter:       meter,
		backends:    backends,
		artifacts:   artifacts,
		sink:        sink,
		chunkLimit:  chunkLimit,
		callTimeout: callTimeout,
		log:         log,
	}
}

// Convert runs one request through the full pipeline and returns the
// stored artifact's description.
func (p *Pipeline) Convert(ctx context.Context, req core.SynthesisRequest) (*core.SynthesisResult, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return nil, core.ErrTextEmpty
	}

	if req.StyleDegree == 0 {
		req.StyleDegree = 1.0
	}

	req.Prosody = req.Prosody.Normalized()

	// Cost is the input character count, fixed before any backend work.
	requested := utf8.RuneCountInString(req.Text)

	admission, admitErr := p.meter.Admit(ctx, req.UserID, requested)
	if admitErr != nil {
		return nil, admitErr
	}

	if !admission.Allowed {
		return nil, fmt.Errorf("%w: %s", core.ErrAdmissionDenied, admission.Reason)
	}

	backend, backendErr := p.backends.ForRequest(req.Engine)
	if backendErr != nil {
		return nil, backendErr
	}

	prepareErr := backend.Prepare(ctx)
	if prepareErr != nil {
		return nil, prepareErr
	}

	chunks := text.Segment(req.Text, p.chunkLimit)

	assembled, synthesisErr := p.synthesizeChunks(ctx, backend, chunks, req)
	if synthesisErr != nil {
		return nil, synthesisErr
	}

	location, saveErr := p.artifacts.Save(ctx, assembled)
	if saveErr != nil {
		return nil, fmt.Errorf("%w: failed to store artifact: %w", core.ErrAssembly, saveErr)
	}

	commitErr := p.meter.Commit(ctx, req.UserID, requested)
	if commitErr != nil {
		return nil, commitErr
	}

	voice := req.VoiceID
	if voice == "" {
		voice = backend.DefaultVoice()
	}

	recordErr := p.sink.Record(ctx, core.ConversionRecord{
		UserID:    req.UserID,
		Text:      req.Text,
		Location:  location,
		Voice:     voice,
		Engine:    backend.Name(),
		CreatedAt: time.Now().UTC(),
	})
	if recordErr != nil {
		// The charge stands; the artifact exists and was delivered.
		p.log.Error("Failed to record conversion for user '%s': %v", req.UserID, recordErr)
	}

	p.log.Info(
		"Synthesized %d chunks (%d chars) for user '%s' via %s voice '%s'",
		len(chunks), requested, req.UserID, backend.Name(), voice)

	return &core.SynthesisResult{
		Audio:      assembled,
		ByteLength: len(assembled),
		ChunkCount: len(chunks),
		Engine:     backend.Name(),
		Voice:      voice,
		Location:   location,
	}, nil
}

// synthesizeChunks converts every chunk and concatenates the audio. The
// spool holding intermediate chunks is removed on every return path.
func (p *Pipeline) synthesizeChunks(
	ctx context.Context,
	backend engine.SpeechBackend,
	chunks []string,
	req core.SynthesisRequest,
) ([]byte, error) {
	spool, spoolErr := audio.NewSpool(p.log)
	if spoolErr != nil {
		return nil, spoolErr
	}
	defer spool.Cleanup()

	for index, chunk := range chunks {
		data, chunkErr := p.synthesizeOne(ctx, backend, chunk, req)
		if chunkErr != nil {
			return nil, fmt.Errorf("chunk %d of %d: %w", index+1, len(chunks), chunkErr)
		}

		addErr := spool.Add(index, data)
		if addErr != nil {
			return nil, addErr
		}
	}

	collected, collectErr := spool.Collect()
	if collectErr != nil {
		return nil, collectErr
	}

	assembled, assembleErr := audio.Assemble(collected)
	if assembleErr != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrAssembly, assembleErr)
	}

	return assembled, nil
}

// synthesizeOne bounds a single backend call with the per-call timeout.
func (p *Pipeline) synthesizeOne(
	ctx context.Context,
	backend engine.SpeechBackend,
	chunk string,
	req core.SynthesisRequest,
) ([]byte, error) {
	callCtx := ctx

	if p.callTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	data, err := backend.Synthesize(callCtx, chunk, req)
	if err != nil {
		return nil, err
	}

	return data, nil
}
