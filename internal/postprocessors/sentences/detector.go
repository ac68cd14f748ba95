// Package sentences provides the sentence boundary detector shared by the
// chunker and the sentence segmenter. Both callers go through Detect so
// chunk boundaries and citable sentence boundaries can never diverge.
package sentences

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// DefaultMaxChars is the default maximum sentence length in bytes.
// Longer sentences are subdivided at clause or word boundaries.
const DefaultMaxChars = 1000

// Detector finds abbreviation-aware sentence spans.
// A Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	maxChars      int
	honorifics    map[string]struct{}
	abbreviations map[string]struct{}
}

// Option configures the detector.
type Option func(*Detector)

// WithMaxChars sets the maximum sentence length in bytes.
func WithMaxChars(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxChars = n
		}
	}
}

// WithAbbreviations adds abbreviations to the dictionary. Entries are
// matched case-insensitively and without their final period.
func WithAbbreviations(words ...string) Option {
	return func(d *Detector) {
		for _, w := range words {
			w = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(w)), ".")
			if w != "" {
				d.abbreviations[w] = struct{}{}
			}
		}
	}
}

// NewDetector creates a detector with the built-in medical dictionary.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		maxChars:      DefaultMaxChars,
		honorifics:    wordSet(honorifics),
		abbreviations: wordSet(medicalAbbreviations),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxChars returns the configured maximum sentence length.
func (d *Detector) MaxChars() int {
	return d.maxChars
}

// Detect returns the ordered sentence spans of text, each shifted by base.
// Spans exclude surrounding whitespace; the bytes between consecutive spans
// are whitespace only, so the spans cover text exactly modulo whitespace.
func (d *Detector) Detect(text string, base int) []domain.Offsets {
	raw := d.split(text)
	out := make([]domain.Offsets, 0, len(raw))
	for _, sp := range raw {
		for _, sub := range d.subdivide(text, sp) {
			out = append(out, sub.Shift(base))
		}
	}
	return out
}

// split finds sentence spans at terminal punctuation and blank lines.
func (d *Detector) split(text string) []domain.Offsets {
	var spans []domain.Offsets
	n := len(text)
	start := -1

	for i := 0; i < n; {
		c := text[i]
		if start < 0 {
			if isSpace(c) {
				i++
				continue
			}
			start = i
		}

		if c == '\n' && blankLineAt(text, i) {
			spans = append(spans, trimRight(text, start, i))
			start = -1
			i++
			continue
		}

		if !isTerminal(c) {
			i++
			continue
		}

		end := i + 1
		for end < n && (isTerminal(text[end]) || isCloser(text[end])) {
			end++
		}
		if end == n || isSpace(text[end]) {
			if !d.continues(text, start, i, end) {
				spans = append(spans, domain.Offsets{Start: start, End: end})
				start = -1
			}
		}
		i = end
	}

	if start >= 0 {
		if sp := trimRight(text, start, n); sp.Len() > 0 {
			spans = append(spans, sp)
		}
	}
	return spans
}

// continues reports whether the period at dot is an abbreviation that does
// not end the sentence. end is the index just past the punctuation run.
func (d *Detector) continues(text string, start, dot, end int) bool {
	if text[dot] != '.' || end == len(text) {
		return false
	}
	if run := strings.TrimRight(text[dot:end], `"')]`); run != "." {
		return false
	}

	tokStart := dot
	for tokStart > start && !isSpace(text[tokStart-1]) {
		tokStart--
	}
	token := strings.ToLower(strings.TrimLeft(text[tokStart:dot], `"'([`))
	if token == "" {
		return false
	}

	if _, ok := d.honorifics[token]; ok {
		return true
	}
	if _, ok := d.abbreviations[token]; !ok {
		return false
	}

	j := end
	for j < len(text) && isSpace(text[j]) {
		j++
	}
	if j == len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[j:])
	return unicode.IsLower(r) || unicode.IsDigit(r)
}

// subdivide splits a span longer than maxChars at clause boundaries, or
// failing that at word boundaries. A single token longer than the window
// is kept whole.
func (d *Detector) subdivide(text string, sp domain.Offsets) []domain.Offsets {
	if sp.Len() <= d.maxChars {
		return []domain.Offsets{sp}
	}

	var out []domain.Offsets
	s := sp.Start
	for sp.End-s > d.maxChars {
		limit := s + d.maxChars
		cut := -1

		for k := limit - 1; k > s; k-- {
			if (text[k] == ',' || text[k] == ';') && k+1 < sp.End && isSpace(text[k+1]) {
				cut = k + 1
				break
			}
		}
		if cut < 0 {
			for k := limit; k > s; k-- {
				if isSpace(text[k]) {
					cut = k
					break
				}
			}
		}
		if cut < 0 {
			cut = limit
			for cut < sp.End && !isSpace(text[cut]) {
				cut++
			}
		}

		out = append(out, trimRight(text, s, cut))
		s = cut
		for s < sp.End && isSpace(text[s]) {
			s++
		}
	}
	if s < sp.End {
		out = append(out, domain.Offsets{Start: s, End: sp.End})
	}
	return out
}

// Covers reports whether spans (shifted by base) are ordered, non-overlapping,
// inside text, and separated only by whitespace, so that concatenating them
// ignoring whitespace reconstructs text.
func Covers(text string, spans []domain.Offsets, base int) bool {
	prev := 0
	for _, abs := range spans {
		sp := abs.Shift(-base)
		if !sp.Valid(len(text)) || sp.Start < prev {
			return false
		}
		if strings.TrimSpace(text[prev:sp.Start]) != "" {
			return false
		}
		prev = sp.End
	}
	return strings.TrimSpace(text[prev:]) == ""
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func trimRight(text string, start, end int) domain.Offsets {
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return domain.Offsets{Start: start, End: end}
}

// blankLineAt reports whether the newline at i is followed by another
// newline with only horizontal whitespace between them.
func blankLineAt(text string, i int) bool {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

func isTerminal(c byte) bool {
	return c == '.' || c == '?' || c == '!'
}

func isCloser(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']'
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
