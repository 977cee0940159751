package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stop word and punctuation", "The Rust-Lang Guide!", []string{"rust", "lang", "guide"}},
		{"empty", "", []string{}},
		{"only stop words", "the a and OR", []string{}},
		{"single characters dropped", "x y z go", []string{"go"}},
		{"repetition kept", "rust RUST rust", []string{"rust", "rust", "rust"}},
		{"digits are alphanumeric", "http2 over tcp 443", []string{"http2", "over", "tcp", "443"}},
		{"unicode letters", "Café Über straße", []string{"café", "über", "straße"}},
		{"devanagari vowel signs stay in the word", "किताब हिन्दी", []string{"किताब", "हिन्दी"}},
		{"tamil virama stays in the word", "தமிழ் மொழி", []string{"தமிழ்", "மொழி"}},
		{"full-width folded", "ＧＯ１２", []string{"go12"}},
		{"trailing term", "systems language", []string{"systems", "language"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "Distributed search engines process queries across multiple shards."
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestTermFrequencies(t *testing.T) {
	freqs := TermFrequencies("Rust Guide rust is a systems language")
	assert.Equal(t, map[string]uint32{
		"rust":     2,
		"guide":    1,
		"systems":  1,
		"language": 1,
	}, freqs)
}

func TestIsStopWord(t *testing.T) {
	for _, w := range []string{"the", "and", "a", "is", "of", "in", "on", "for", "with", "to", "or", "by", "an", "it", "be"} {
		assert.True(t, IsStopWord(w), w)
	}
	assert.False(t, IsStopWord("rust"))
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat(`Information retrieval systems form the backbone of local
        search. The inverted index maps each term to the pages containing it. `, 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
