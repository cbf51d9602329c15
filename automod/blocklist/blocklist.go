// Automod component for cheap structural spam detection.
//
// These are stateless pattern checks which catch degenerate content
// (invisible-character floods, diacritic stacking, formatting spam) before
// any external classifier is consulted. The pattern registry is mutable at
// runtime so operators can react to novel spam without a restart.
package blocklist

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// glyphs abused for "lag machine" spam: extremely wide or stacking codepoints
const (
	glyphBismillah = "﷽"
	glyphLugal     = "\U00012219"
	glyphCuneiform = "\U0001242B"
	glyphMyanmarAu = "ဪ"
	glyphJavanese  = "꧅"
)

var (
	confusableRunPattern = regexp.MustCompile(`[\x{FDFD}\x{12219}\x{1242B}\x{102A}\x{A9C5}]{3,}`)
	invisibleRunPattern  = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{2060}\x{180E}\x{061C}\x{2066}-\x{2069}]{3,}`)
	combiningRunPattern  = regexp.MustCompile(`[\x{0300}-\x{036F}\x{1AB0}-\x{1AFF}\x{1DC0}-\x{1DFF}\x{20D0}-\x{20FF}\x{FE20}-\x{FE2F}]{8,}`)

	// includes NBSP, which the run patterns above deliberately do not
	invisibleCharPattern = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00A0}\x{2060}\x{180E}\x{061C}\x{2066}-\x{2069}]`)

	formattingPairPattern = regexp.MustCompile(`\*\*|__|` + "``" + `|\|\||~~`)
	whitespacePattern     = regexp.MustCompile(`\s`)
)

// fraction of invisible characters above which content is classified as spam
const invisibleDensityThreshold = 0.9

const (
	emojiRepeatMinTotal   = 10
	emojiRepeatMinRepeats = 15
)

// Registry holds the exact strings and regex patterns matched by IsSpam.
// Safe for concurrent use; AddLiteral and AddPattern extend it at runtime.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]bool
	patterns []*regexp.Regexp
}

func NewRegistry() *Registry {
	return &Registry{
		exact: make(map[string]bool),
		patterns: []*regexp.Regexp{
			confusableRunPattern,
			invisibleRunPattern,
			combiningRunPattern,
		},
	}
}

// DefaultRegistry seeds the known degenerate strings observed in the wild.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range []string{
		glyphBismillah + glyphBismillah + glyphLugal + glyphCuneiform + glyphMyanmarAu + glyphCuneiform + glyphLugal + glyphLugal + glyphBismillah + glyphJavanese,
		glyphLugal + glyphCuneiform + glyphMyanmarAu + glyphCuneiform + glyphLugal + glyphLugal + glyphBismillah + glyphJavanese + glyphBismillah + glyphBismillah,
		glyphBismillah + glyphLugal + glyphCuneiform + glyphMyanmarAu + glyphCuneiform + glyphLugal + glyphLugal + glyphBismillah + glyphJavanese,

		"****",
		"____",
		"````",
		"||||",
		"~~~~",

		"\u200B\u200B\u200B",
		"\u200C\u200C\u200C",
		"\u200D\u200D\u200D",
		"\uFEFF\uFEFF\uFEFF",
	} {
		r.AddLiteral(s)
	}
	return r
}

// AddLiteral registers an exact-match spam string.
func (r *Registry) AddLiteral(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[s] = true
}

// AddPattern registers an additional spam regex.
func (r *Registry) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// IsSpam classifies content on structure alone. Any single signature is
// sufficient: exact degenerate strings, registered patterns, invisible
// character density, repeated single-emoji floods, or pure formatting
// delimiter flooding.
func (r *Registry) IsSpam(content string) bool {
	norm := strings.TrimSpace(content)
	if norm == "" {
		return false
	}

	r.mu.RLock()
	exactHit := r.exact[norm] || r.exact[whitespacePattern.ReplaceAllString(norm, "")]
	patterns := r.patterns
	r.mu.RUnlock()

	if exactHit {
		return true
	}
	for _, p := range patterns {
		if p.MatchString(norm) {
			return true
		}
	}

	if invisibleDensity(norm) > invisibleDensityThreshold {
		return true
	}
	if emojiFlood(norm) {
		return true
	}
	return formattingFlood(norm)
}

func invisibleDensity(s string) float64 {
	invisible := len(invisibleCharPattern.FindAllString(s, -1))
	if invisible == 0 {
		return 0
	}
	return float64(invisible) / float64(utf8.RuneCountInString(s))
}

func isEmojiRune(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1F9FF:
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	case r >= 0x2700 && r <= 0x27BF:
		return true
	}
	return false
}

// catches walls of the same emoji repeated dozens of times
func emojiFlood(s string) bool {
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		if isEmojiRune(r) {
			counts[r]++
			total++
		}
	}
	if total <= emojiRepeatMinTotal {
		return false
	}
	for _, n := range counts {
		if n >= emojiRepeatMinRepeats {
			return true
		}
	}
	return false
}

// content which is nothing but markdown delimiter pairs (bold, underline,
// code, spoiler, strikethrough)
func formattingFlood(s string) bool {
	pairs := len(formattingPairPattern.FindAllString(s, -1))
	if pairs < 3 {
		return false
	}
	stripped := formattingPairPattern.ReplaceAllString(s, "")
	stripped = whitespacePattern.ReplaceAllString(stripped, "")
	return stripped == ""
}
