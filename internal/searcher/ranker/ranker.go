package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/tokenizer"
)

// DefaultLimit applies when the caller passes a non-positive limit.
const DefaultLimit = 10

type ScoredDoc struct {
	Doc   index.Document
	Score float64
}

// Rank scores every document sharing at least one term with query and
// returns the best limit of them. Scores are summed TF-IDF contributions;
// ties go to the more recently created document.
func Rank(ix *index.Index, query string, limit int) []ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	terms := tokenizer.Tokenize(query)
	if len(terms) == 0 || ix.Count() == 0 {
		return []ScoredDoc{}
	}

	totalDocs := ix.Count()
	scores := make(map[uint64]float64)
	for _, term := range terms {
		postings := ix.Postings(term)
		if len(postings) == 0 {
			continue
		}
		idf := computeIDF(totalDocs, len(postings))
		for _, posting := range postings {
			scores[posting.DocID] += computeTFWeight(posting.Frequency) * idf
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		doc, ok := ix.Get(docID)
		if !ok {
			continue
		}
		result = append(result, ScoredDoc{Doc: doc, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		if result[i].Doc.CreatedAt != result[j].Doc.CreatedAt {
			return result[i].Doc.CreatedAt > result[j].Doc.CreatedAt
		}
		return result[i].Doc.ID < result[j].Doc.ID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// computeIDF is smoothed so a term present in every document still weighs
// slightly above zero.
func computeIDF(totalDocs int, docFreq int) float64 {
	return math.Log(1 + float64(totalDocs)/float64(1+docFreq))
}

func computeTFWeight(termFreq uint32) float64 {
	return 1 + math.Max(0, math.Log(float64(termFreq)))
}
