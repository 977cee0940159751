// Package tokenizer provides text tokenisation for the page index.
// It NFKC-normalises and lower-cases input, splits on non-alphanumeric
// boundaries, and drops single-character terms and stop-words.
package tokenizer

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinTermLength is the shortest term, in characters, that is kept.
const MinTermLength = 2

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "be": {}, "by": {},
	"for": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "the": {}, "to": {}, "with": {},
}

// IsStopWord reports whether term is dropped by Tokenize.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// Tokenize breaks text into lower-cased terms in left-to-right order.
// Repeated terms are kept.
func Tokenize(text string) []string {
	text = norm.NFKC.String(text)
	tokens := make([]string, 0, len(text)/6)
	current := make([]rune, 0, 16)

	emit := func() {
		if len(current) == 0 {
			return
		}
		term := string(current)
		current = current[:0]
		if utf8.RuneCountInString(term) < MinTermLength {
			return
		}
		if IsStopWord(term) {
			return
		}
		tokens = append(tokens, term)
	}

	for _, r := range text {
		if isTermRune(r) {
			current = append(current, unicode.ToLower(r))
			continue
		}
		emit()
	}
	emit()
	return tokens
}

// TermFrequencies counts how many times each term of Tokenize(text) occurs.
func TermFrequencies(text string) map[string]uint32 {
	freqs := make(map[string]uint32)
	for _, term := range Tokenize(text) {
		freqs[term]++
	}
	return freqs
}

// isTermRune accepts letters, digits and combining marks. Marks carry the
// vowel signs and viramas of Indic scripts.
func isTermRune(r rune) bool {
	return unicode.In(r, unicode.L, unicode.M, unicode.N)
}
