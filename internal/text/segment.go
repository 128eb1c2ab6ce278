// Package text provides the input segmenter for the synthesis pipeline.
//
// Long submissions are split into bounded chunks so that each chunk fits
// within a single backend synthesis call. Splitting prefers sentence
// boundaries, then word boundaries, and only breaks mid-word when the input
// contains neither within the window.
package text

import (
	"strings"
	"unicode"
)

// Segment splits text into ordered chunks of at most limit runes each.
//
// If the trimmed text already fits, it is returned as a single chunk. A
// limit of zero or less disables splitting. Otherwise the split point is
// searched backward from the limit: first for sentence-terminal punctuation
// (the split lands immediately after the mark), then for whitespace (the
// whitespace itself is excluded), and finally a hard break exactly at the
// limit — an accepted degradation for input with no spaces or punctuation
// at all. Every emitted chunk is trimmed and never empty, so re-segmenting
// any produced chunk yields that chunk unchanged.
func Segment(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var chunks []string

	for len(runes) > limit {
		cut := splitPoint(runes, limit)

		piece := strings.TrimSpace(string(runes[:cut]))
		if piece != "" {
			chunks = append(chunks, piece)
		}

		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}

	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}

	return chunks
}

// splitPoint returns the index to cut at, searching backward from limit.
func splitPoint(runes []rune, limit int) int {
	for i := limit - 1; i >= 0; i-- {
		if isSentenceTerminal(runes[i]) {
			return i + 1
		}
	}

	for i := limit - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	return limit
}

func isSentenceTerminal(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
