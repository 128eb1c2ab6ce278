// Package ssml compiles the inline pseudo-markup accepted inside a
// synthesis request into a speech-synthesis markup document.
//
// The recognized grammar is [voice:<id>]...[/voice], [style:<name>]...
// [/style] and the self-contained [break:<duration>] directive. The
// compiler tracks exactly one active voice and at most one active style:
// nested styles are not representable and a style-close always closes the
// only open style. Every document it emits is balanced by construction.
//
// Literal text is emitted verbatim, without XML escaping. That matches the
// upstream consumers' tolerance for the constrained input this service
// accepts, and is a known limitation rather than an invitation to pass raw
// markup through.
package ssml

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/readaloud/synthesis-service/internal/core"
)

// Document envelope and tag shapes.
const (
	documentOpen = `<speak version='1.0' xmlns="http://www.w3.org/2001/10/synthesis" ` +
		`xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang='en-US'>`
	documentClose = `</speak>`

	voiceOpenFormat = `<voice name="%s"><prosody rate="%s" pitch="%s">`
	voiceClose      = `</prosody></voice>`

	styleOpenFormat       = `<mstts:express-as style="%s">`
	styleOpenDegreeFormat = `<mstts:express-as style="%s" styledegree="%s">`
	styleClose            = `</mstts:express-as>`

	breakReplacement = `<break time="$1" />`
)

// Control marker prefixes and suffix lengths used when decoding tokens.
const (
	voiceOpenMarker = "[voice:"
	styleOpenMarker = "[style:"
	voiceCloseToken = "[/voice]"
	styleCloseToken = "[/style]"
	markerSuffixLen = 1
)

// NeutralStyleDegree is the expressiveness degree that carries no explicit
// styledegree attribute.
const NeutralStyleDegree = 1.0

var (
	breakPattern   = regexp.MustCompile(`\[break:([^\]]+)\]`)
	controlPattern = regexp.MustCompile(`\[voice:[^\]]+\]|\[/voice\]|\[style:[^\]]+\]|\[/style\]`)
	numericPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// scope is the typed compiler state: the voice wrapper currently open and
// the style span open inside it, if any.
type scope struct {
	voice string
	style string
}

type compiler struct {
	out          strings.Builder
	scope        scope
	defaultVoice string
	styleDegree  float64
	prosody      core.Prosody
}

// Compile turns text with inline pseudo-markup into a balanced synthesis
// markup document scoped to defaultVoice and the given prosody. An
// unmatched voice-close reverts to the default voice; an unmatched
// style-close is ignored.
func Compile(text, defaultVoice string, styleDegree float64, prosody core.Prosody) string {
	// Pause directives are context-free; substitute them before the scan.
	text = breakPattern.ReplaceAllString(text, breakReplacement)

	comp := &compiler{
		out:          strings.Builder{},
		scope:        scope{voice: "", style: ""},
		defaultVoice: defaultVoice,
		styleDegree:  styleDegree,
		prosody:      normalizeProsody(prosody),
	}

	comp.out.WriteString(documentOpen)
	comp.openVoice(defaultVoice)

	cursor := 0

	for _, match := range controlPattern.FindAllStringIndex(text, -1) {
		comp.out.WriteString(text[cursor:match[0]])
		comp.handleToken(text[match[0]:match[1]])

		cursor = match[1]
	}

	comp.out.WriteString(text[cursor:])
	comp.closeStyle()
	comp.closeVoice()
	comp.out.WriteString(documentClose)

	return comp.out.String()
}

func (c *compiler) handleToken(token string) {
	switch {
	case strings.HasPrefix(token, voiceOpenMarker):
		c.switchVoice(token[len(voiceOpenMarker) : len(token)-markerSuffixLen])
	case token == voiceCloseToken:
		c.switchVoice(c.defaultVoice)
	case strings.HasPrefix(token, styleOpenMarker):
		c.openStyle(token[len(styleOpenMarker) : len(token)-markerSuffixLen])
	case token == styleCloseToken:
		c.closeStyle()
	}
}

// switchVoice closes the open style and voice wrapper, then re-opens a
// wrapper for the named voice with the request prosody.
func (c *compiler) switchVoice(voice string) {
	c.closeStyle()
	c.closeVoice()
	c.openVoice(voice)
}

func (c *compiler) openVoice(voice string) {
	fmt.Fprintf(&c.out, voiceOpenFormat, voice, c.prosody.Rate, c.prosody.Pitch)

	c.scope.voice = voice
}

func (c *compiler) closeVoice() {
	if c.scope.voice == "" {
		return
	}

	c.out.WriteString(voiceClose)

	c.scope.voice = ""
}

// openStyle closes any previously open style first; styles never nest.
func (c *compiler) openStyle(style string) {
	c.closeStyle()

	if c.styleDegree != NeutralStyleDegree {
		fmt.Fprintf(&c.out, styleOpenDegreeFormat, style, formatStyleDegree(c.styleDegree))
	} else {
		fmt.Fprintf(&c.out, styleOpenFormat, style)
	}

	c.scope.style = style
}

func (c *compiler) closeStyle() {
	if c.scope.style == "" {
		return
	}

	c.out.WriteString(styleClose)

	c.scope.style = ""
}

// formatStyleDegree renders whole degrees with one decimal ("2.0") and
// keeps fractional degrees exact ("1.75").
func formatStyleDegree(degree float64) string {
	if degree == math.Trunc(degree) {
		return strconv.FormatFloat(degree, 'f', 1, 64)
	}

	return strconv.FormatFloat(degree, 'f', -1, 64)
}

// normalizeProsody converts bare numeric prosody values into the suffixed
// forms the synthesis backend expects: rate becomes a percentage, pitch a
// signed semitone offset. Keywords and already-suffixed values pass
// through unchanged.
func normalizeProsody(prosody core.Prosody) core.Prosody {
	prosody = prosody.Normalized()

	if numericPattern.MatchString(prosody.Rate) {
		prosody.Rate = strings.TrimPrefix(prosody.Rate, "+") + "%"
	}

	if numericPattern.MatchString(prosody.Pitch) {
		if !strings.HasPrefix(prosody.Pitch, "+") && !strings.HasPrefix(prosody.Pitch, "-") {
			prosody.Pitch = "+" + prosody.Pitch
		}

		prosody.Pitch += "st"
	}

	return prosody
}
