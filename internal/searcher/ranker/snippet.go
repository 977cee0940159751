package ranker

import (
	"strings"
	"unicode"
)

// DefaultSnippetLength is the snippet window, in characters.
const DefaultSnippetLength = 200

// Snippet returns the first maxChars characters of content. When content is
// longer, the window is cut back to its last whitespace so no word is split.
func Snippet(content string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultSnippetLength
	}
	count := 0
	for i := range content {
		if count == maxChars {
			window := content[:i]
			if cut := strings.LastIndexFunc(window, unicode.IsSpace); cut >= 0 {
				return window[:cut]
			}
			return window
		}
		count++
	}
	return content
}
