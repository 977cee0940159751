package ranker

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/index"
)

func rustGuideIndex() *index.Index {
	ix := index.New()
	ix.IndexDocument(index.Document{ID: 1, URL: "https://rust", Title: "Rust Guide", Content: "rust is a systems language", CreatedAt: 10})
	return ix
}

func TestRankScoringScenario(t *testing.T) {
	ix := rustGuideIndex()

	rust := Rank(ix, "rust", 10)
	require.Len(t, rust, 1)
	wantRust := (1 + math.Log(2)) * math.Log(1.5)
	assert.InDelta(t, wantRust, rust[0].Score, 1e-9)
	assert.InDelta(t, 0.686, rust[0].Score, 0.001)

	guide := Rank(ix, "guide", 10)
	require.Len(t, guide, 1)
	assert.InDelta(t, math.Log(1.5), guide[0].Score, 1e-9)
	assert.InDelta(t, 0.405, guide[0].Score, 0.001)

	assert.GreaterOrEqual(t, rust[0].Score, guide[0].Score)
}

func TestRankEmptyQueryAndIndex(t *testing.T) {
	ix := rustGuideIndex()
	assert.Empty(t, Rank(ix, "", 5))
	assert.Empty(t, Rank(ix, "the a", 5))
	assert.Empty(t, Rank(ix, "unknown", 5))
	assert.Empty(t, Rank(index.New(), "rust", 5))
}

func TestRankORSemantics(t *testing.T) {
	ix := index.New()
	ix.IndexDocument(index.Document{ID: 1, Title: "golang", Content: "channels"})
	ix.IndexDocument(index.Document{ID: 2, Title: "python", Content: "generators"})
	ix.IndexDocument(index.Document{ID: 3, Title: "golang python", Content: "both"})

	results := Rank(ix, "golang python", 10)
	require.Len(t, results, 3)
	assert.Equal(t, uint64(3), results[0].Doc.ID, "matching both terms ranks first")
}

func TestRankTieBreaksOnRecency(t *testing.T) {
	ix := index.New()
	ix.IndexDocument(index.Document{ID: 1, Title: "kernel", CreatedAt: 100})
	ix.IndexDocument(index.Document{ID: 2, Title: "kernel", CreatedAt: 300})
	ix.IndexDocument(index.Document{ID: 3, Title: "kernel", CreatedAt: 200})

	results := Rank(ix, "kernel", 10)
	require.Len(t, results, 3)
	assert.Equal(t, []uint64{2, 3, 1}, []uint64{results[0].Doc.ID, results[1].Doc.ID, results[2].Doc.ID})
}

func TestRankLimit(t *testing.T) {
	ix := index.New()
	for i := 1; i <= 15; i++ {
		ix.IndexDocument(index.Document{ID: uint64(i), Title: fmt.Sprintf("shared page%d", i)})
	}
	assert.Len(t, Rank(ix, "shared", 3), 3)
	assert.Len(t, Rank(ix, "shared", 0), DefaultLimit)
	assert.Len(t, Rank(ix, "shared", -1), DefaultLimit)
}

func TestRankRarerTermWeighsMore(t *testing.T) {
	ix := index.New()
	ix.IndexDocument(index.Document{ID: 1, Title: "common rare"})
	ix.IndexDocument(index.Document{ID: 2, Title: "common"})
	ix.IndexDocument(index.Document{ID: 3, Title: "common"})

	rare := Rank(ix, "rare", 1)
	common := Rank(ix, "common", 1)
	require.Len(t, rare, 1)
	require.Len(t, common, 1)
	assert.Greater(t, rare[0].Score, common[0].Score)
	assert.Greater(t, common[0].Score, 0.0)
}

func TestComputeTFWeight(t *testing.T) {
	assert.Equal(t, 1.0, computeTFWeight(1))
	assert.InDelta(t, 1+math.Log(2), computeTFWeight(2), 1e-12)
}

func BenchmarkRank(b *testing.B) {
	ix := index.New()
	terms := []string{"distributed", "search", "local", "history", "bookmark", "query", "engine", "ranking"}
	for i := 0; i < 5000; i++ {
		ix.IndexDocument(index.Document{
			ID:      uint64(i + 1),
			Title:   fmt.Sprintf("page about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)]),
			Content: fmt.Sprintf("this page covers %s %s", terms[(i+2)%len(terms)], terms[(i+3)%len(terms)]),
		})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank(ix, "search ranking", 10)
	}
}

func TestToResultsCarriesFieldsAndSnippet(t *testing.T) {
	ix := index.New()
	ix.IndexDocument(index.Document{ID: 4, URL: "https://a", Title: "Alpha", Content: "alpha beta gamma", CreatedAt: 9})

	results := ToResults(Rank(ix, "alpha", 10), 10)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, uint64(4), r.ID)
	assert.Equal(t, "https://a", r.URL)
	assert.Equal(t, "Alpha", r.Title)
	assert.Equal(t, "alpha", r.Snippet)
	assert.Equal(t, uint64(9), r.CreatedAt)
	assert.Greater(t, r.Score, 0.0)

	assert.NotNil(t, ToResults(nil, 10))
}
