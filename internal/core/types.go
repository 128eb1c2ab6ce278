// Package core defines the domain types, collaborator interfaces, and the
// failure taxonomy shared by every stage of the synthesis pipeline.
package core

import "time"

// Engine selector values accepted on a synthesis request.
const (
	// EngineNeural selects the markup-capable backend.
	EngineNeural = "neural"
	// EngineStandard selects the plain-text backend.
	EngineStandard = "standard"
)

// Default prosody keyword used when a request leaves rate or pitch unset.
const ProsodyMedium = "medium"

// Prosody holds the pacing parameters applied to every voice segment of a
// request. Values are either backend keywords ("medium", "fast") or numeric
// strings that the markup compiler normalizes to percentage/semitone form.
type Prosody struct {
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

// DefaultProsody returns the prosody applied when a request specifies none.
func DefaultProsody() Prosody {
	return Prosody{Rate: ProsodyMedium, Pitch: ProsodyMedium}
}

// Normalized fills empty fields with the default keyword.
func (p Prosody) Normalized() Prosody {
	if p.Rate == "" {
		p.Rate = ProsodyMedium
	}

	if p.Pitch == "" {
		p.Pitch = ProsodyMedium
	}

	return p
}

// SynthesisRequest describes one conversion job as submitted by a user.
type SynthesisRequest struct {
	UserID      string  `json:"user_id"`
	Text        string  `json:"text"`
	VoiceID     string  `json:"voice_id"`
	Engine      string  `json:"engine"`
	StyleDegree float64 `json:"style_degree"`
	Prosody     Prosody `json:"prosody"`
}

// SynthesisResult holds the assembled artifact for the duration of one
// request. Ownership passes to the persistence sink once Location is set.
type SynthesisResult struct {
	Audio      []byte
	ByteLength int
	ChunkCount int
	Engine     string
	Voice      string
	Location   string
}

// CreditAccount is the per-user billing state. CreditsUsed only ever grows
// outside of administrative resets.
type CreditAccount struct {
	UserID      string `json:"user_id"`
	PlanName    string `json:"plan_name"`
	CreditsUsed int    `json:"credits_used"`
}

// PlanPolicy is a named billing tier: the credit ceiling and how long
// conversion history is retained.
type PlanPolicy struct {
	Name                 string
	CreditLimit          int
	HistoryRetentionDays int
}

// ConversionRecord is the durable trace of one successful synthesis.
type ConversionRecord struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Location  string    `json:"location"`
	Voice     string    `json:"voice"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
}
