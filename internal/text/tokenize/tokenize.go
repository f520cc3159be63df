package tokenize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Built-in tokenizer names.
const (
	Unicode    = "unicode"
	Whitespace = "whitespace"
	CJKBigram  = "cjk_bigram"
)

// Tokenizer splits text into index terms.
type Tokenizer interface {
	Name() string
	Tokenize(text string) []string
}

// DefaultStopwords is the English stopword list shared by all built-ins.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "have", "he", "in", "is", "it", "its", "of", "on", "or",
	"that", "the", "to", "was", "were", "with", "this", "but", "they",
	"we", "you", "your", "my", "their", "been", "do", "does", "did",
}

type stopset map[string]struct{}

func newStopset(extra []string) stopset {
	s := make(stopset, len(DefaultStopwords)+len(extra))
	for _, w := range DefaultStopwords {
		s[w] = struct{}{}
	}
	for _, w := range extra {
		s[normalize(w)] = struct{}{}
	}
	return s
}

func (s stopset) has(w string) bool {
	_, ok := s[w]
	return ok
}

// normalize applies NFKC and lower-cases. Full-width latin and compatibility forms fold here.
func normalize(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// unicodeTokenizer splits on anything that is not a letter or digit.
type unicodeTokenizer struct {
	stop stopset
}

func (t *unicodeTokenizer) Name() string { return Unicode }

func (t *unicodeTokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(normalize(text), func(r rune) bool { return !isWordRune(r) })
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || t.stop.has(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// whitespaceTokenizer splits on whitespace only and trims surrounding punctuation.
type whitespaceTokenizer struct {
	stop stopset
}

func (t *whitespaceTokenizer) Name() string { return Whitespace }

func (t *whitespaceTokenizer) Tokenize(text string) []string {
	fields := strings.Fields(normalize(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return !isWordRune(r) })
		if f == "" || t.stop.has(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// cjkBigramTokenizer emits overlapping rune bigrams for tokens written in
// Hangul, Han or Kana, which have no reliable whitespace word boundaries.
// Other tokens pass through the unicode tokenizer rules.
type cjkBigramTokenizer struct {
	base *unicodeTokenizer
}

func (t *cjkBigramTokenizer) Name() string { return CJKBigram }

func (t *cjkBigramTokenizer) Tokenize(text string) []string {
	fields := strings.FieldsFunc(normalize(text), func(r rune) bool { return !isWordRune(r) })
	var out []string
	for _, f := range fields {
		runes := []rune(f)
		if !isCJK(runes[0]) {
			if len(runes) >= 2 && !t.base.stop.has(f) {
				out = append(out, f)
			}
			continue
		}
		if len(runes) == 1 {
			out = append(out, f)
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Hangul, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

// New returns a built-in tokenizer by name.
func New(name string, extraStopwords []string) (Tokenizer, bool) {
	stop := newStopset(extraStopwords)
	switch name {
	case Unicode:
		return &unicodeTokenizer{stop: stop}, true
	case Whitespace:
		return &whitespaceTokenizer{stop: stop}, true
	case CJKBigram:
		return &cjkBigramTokenizer{base: &unicodeTokenizer{stop: stop}}, true
	}
	return nil, false
}
