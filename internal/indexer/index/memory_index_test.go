package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertConsistent(t *testing.T, ix *Index) {
	t.Helper()
	for term, postings := range ix.inverted {
		require.NotEmpty(t, postings, "term %q has an empty posting list", term)
		for id := range postings {
			require.True(t, ix.Has(id), "term %q references missing doc %d", term, id)
		}
	}
}

func TestIndexDocumentCountsTitleAndContent(t *testing.T) {
	ix := New()
	ix.IndexDocument(Document{ID: 1, URL: "https://rust-lang.org", Title: "Rust Guide", Content: "rust is a systems language"})

	assert.Equal(t, PostingList{{DocID: 1, Frequency: 2}}, ix.Postings("rust"))
	assert.Equal(t, PostingList{{DocID: 1, Frequency: 1}}, ix.Postings("guide"))
	assert.Nil(t, ix.Postings("is"))
	assert.Equal(t, 4, ix.TermCount())
	assertConsistent(t, ix)
}

func TestIndexDocumentSameIDReplacesPostings(t *testing.T) {
	ix := New()
	ix.IndexDocument(Document{ID: 7, Title: "golang", Content: "channels goroutines"})
	ix.IndexDocument(Document{ID: 7, Title: "python", Content: "generators"})

	assert.Equal(t, 1, ix.Count())
	assert.Nil(t, ix.Postings("golang"))
	assert.Nil(t, ix.Postings("channels"))
	assert.Equal(t, 1, ix.DocFreq("python"))
	assertConsistent(t, ix)
}

func TestRemoveDocument(t *testing.T) {
	ix := New()
	ix.IndexDocument(Document{ID: 1, Title: "shared alpha", Content: "only-one"})
	ix.IndexDocument(Document{ID: 2, Title: "shared beta", Content: "other"})

	assert.True(t, ix.RemoveDocument(1))
	assert.False(t, ix.RemoveDocument(1))
	assert.False(t, ix.RemoveDocument(99))

	_, ok := ix.Get(1)
	assert.False(t, ok)
	assert.Nil(t, ix.Postings("alpha"))
	assert.Nil(t, ix.Postings("only"))
	assert.Equal(t, PostingList{{DocID: 2, Frequency: 1}}, ix.Postings("shared"))
	for _, term := range ix.Terms() {
		for _, p := range ix.Postings(term) {
			assert.NotEqual(t, uint64(1), p.DocID)
		}
	}
	assertConsistent(t, ix)
}

func TestUpsertByURLReplaces(t *testing.T) {
	ix := New()
	first := ix.UpsertByURL("https://example.com", "Old Title", "legacy words", 1_700_000_000_000)
	second := ix.UpsertByURL("https://example.com", "New Title", "fresh words", 1_700_000_000_000)

	assert.Equal(t, 1, ix.Count())
	assert.Equal(t, first.ID, second.ID, "freed id is reused by the probe")
	stored, ok := ix.Get(second.ID)
	require.True(t, ok)
	assert.Equal(t, "New Title", stored.Title)
	assert.Nil(t, ix.Postings("legacy"))
	assert.Equal(t, 1, ix.DocFreq("fresh"))
	assert.Equal(t, uint64(1_700_000_000), second.CreatedAt)
	assertConsistent(t, ix)
}

func TestUpsertByURLRemovesAllDuplicates(t *testing.T) {
	ix := New()
	ix.IndexDocument(Document{ID: 10, URL: "u", Title: "one"})
	ix.IndexDocument(Document{ID: 11, URL: "u", Title: "two"})
	ix.IndexDocument(Document{ID: 12, URL: "v", Title: "three"})

	doc := ix.UpsertByURL("u", "four", "", 500)

	assert.Equal(t, 2, ix.Count())
	assert.True(t, ix.Has(doc.ID))
	assert.True(t, ix.Has(12))
	assert.Nil(t, ix.Postings("one"))
	assert.Nil(t, ix.Postings("two"))
}

func TestRestoreRoundTrip(t *testing.T) {
	ix := New()
	for i := 1; i <= 5; i++ {
		ix.IndexDocument(Document{
			ID:      uint64(i),
			URL:     fmt.Sprintf("https://site/%d", i),
			Title:   fmt.Sprintf("page %d", i),
			Content: "common words plus unique" + fmt.Sprint(i),
		})
	}

	restored := Restore(ix.Documents(), ix.InvertedSnapshot())

	assert.Equal(t, ix.Documents(), restored.Documents())
	assert.Equal(t, ix.InvertedSnapshot(), restored.InvertedSnapshot())

	assert.True(t, restored.RemoveDocument(3))
	assert.Nil(t, restored.Postings("unique3"))
	assert.Equal(t, 4, restored.DocFreq("common"))
	assertConsistent(t, restored)
}

func TestRestoreDropsEmptyListsAndDuplicates(t *testing.T) {
	docs := []Document{{ID: 1, Title: "alpha"}}
	inverted := map[string]PostingList{
		"alpha": {{DocID: 1, Frequency: 1}, {DocID: 1, Frequency: 3}},
		"ghost": {},
	}
	ix := Restore(docs, inverted)

	assert.Equal(t, PostingList{{DocID: 1, Frequency: 3}}, ix.Postings("alpha"))
	assert.Nil(t, ix.Postings("ghost"))
	assert.Equal(t, 1, ix.TermCount())
}

func TestRestoreDropsDanglingPostings(t *testing.T) {
	docs := []Document{{ID: 1, Title: "alpha"}}
	inverted := map[string]PostingList{
		"alpha":  {{DocID: 1, Frequency: 1}, {DocID: 7, Frequency: 2}},
		"orphan": {{DocID: 7, Frequency: 3}},
	}
	ix := Restore(docs, inverted)
	assertConsistent(t, ix)
	assert.Nil(t, ix.Postings("orphan"))
	assert.Equal(t, PostingList{{DocID: 1, Frequency: 1}}, ix.Postings("alpha"))

	ix.IndexDocument(Document{ID: 7, Title: "beta"})
	assert.Nil(t, ix.Postings("orphan"), "a reused id must not inherit stale postings")
	assert.Equal(t, 1, ix.DocFreq("beta"))

	require.True(t, ix.RemoveDocument(7))
	for _, term := range ix.Terms() {
		for _, p := range ix.Postings(term) {
			assert.NotEqual(t, uint64(7), p.DocID, "term %q still references removed doc", term)
		}
	}
	assertConsistent(t, ix)
}

func TestRebuildIgnoresPostings(t *testing.T) {
	docs := []Document{
		{ID: 1, Title: "Rust Guide", Content: "rust is a systems language"},
		{ID: 2, Title: "Go Tour", Content: "concurrency"},
	}
	ix := Rebuild(docs)

	assert.Equal(t, 2, ix.Count())
	assert.Equal(t, 1, ix.DocFreq("rust"))
	assert.Equal(t, 1, ix.DocFreq("concurrency"))
	assertConsistent(t, ix)
}

func BenchmarkIndexDocument(b *testing.B) {
	ix := New()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.IndexDocument(Document{
			ID:      uint64(i + 1),
			Title:   "benchmark title",
			Content: "this is a benchmark document with several terms for testing the indexing performance",
		})
	}
}

func BenchmarkRemoveDocument(b *testing.B) {
	ix := New()
	for i := 0; i < b.N; i++ {
		ix.IndexDocument(Document{ID: uint64(i + 1), Title: "remove", Content: "removal cost with reverse term lists"})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ix.RemoveDocument(uint64(i + 1))
	}
}
