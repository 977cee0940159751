package ranker

// Result is one search hit as returned to callers.
type Result struct {
	ID        uint64  `json:"id"`
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	CreatedAt uint64  `json:"created_at"`
}

// ToResults converts ranked documents into results with content snippets of
// at most snippetLength characters.
func ToResults(scored []ScoredDoc, snippetLength int) []Result {
	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		results = append(results, Result{
			ID:        s.Doc.ID,
			URL:       s.Doc.URL,
			Title:     s.Doc.Title,
			Snippet:   Snippet(s.Doc.Content, snippetLength),
			Score:     s.Score,
			CreatedAt: s.Doc.CreatedAt,
		})
	}
	return results
}
