// Package index holds the document store and the inverted index derived from
// it. An Index is not safe for concurrent use; the indexer engine serialises
// access to it.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/tokenizer"
)

// Index is an in-memory document store with its inverted index.
type Index struct {
	docs     map[uint64]Document
	inverted map[string]map[uint64]uint32
	// docTerms is the reverse of inverted, used to make removal proportional
	// to the size of the removed document.
	docTerms    map[uint64][]string
	maxIDProbes int
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		docs:        make(map[uint64]Document),
		inverted:    make(map[string]map[uint64]uint32),
		docTerms:    make(map[uint64][]string),
		maxIDProbes: DefaultMaxIDProbes,
	}
}

// SetMaxIDProbes bounds the linear probe in NextID. Values <= 0 restore the
// default.
func (ix *Index) SetMaxIDProbes(n int) {
	if n <= 0 {
		n = DefaultMaxIDProbes
	}
	ix.maxIDProbes = n
}

// IndexDocument adds doc and its postings, replacing any document that
// already holds doc.ID.
func (ix *Index) IndexDocument(doc Document) {
	if _, exists := ix.docs[doc.ID]; exists {
		ix.RemoveDocument(doc.ID)
	}

	freqs := tokenizer.TermFrequencies(doc.Title + " " + doc.Content)
	terms := make([]string, 0, len(freqs))
	for term, tf := range freqs {
		postings, ok := ix.inverted[term]
		if !ok {
			postings = make(map[uint64]uint32)
			ix.inverted[term] = postings
		}
		postings[doc.ID] = tf
		terms = append(terms, term)
	}
	ix.docTerms[doc.ID] = terms
	ix.docs[doc.ID] = doc
}

// RemoveDocument drops the document and every posting that references it.
// It reports false when no document has that id.
func (ix *Index) RemoveDocument(id uint64) bool {
	if _, ok := ix.docs[id]; !ok {
		return false
	}
	delete(ix.docs, id)
	for _, term := range ix.docTerms[id] {
		postings, ok := ix.inverted[term]
		if !ok {
			continue
		}
		delete(postings, id)
		if len(postings) == 0 {
			delete(ix.inverted, term)
		}
	}
	delete(ix.docTerms, id)
	return true
}

// UpsertByURL removes every document stored under url, then indexes a new
// document with a freshly allocated id. nowMillis seeds the id and also
// provides created_at.
func (ix *Index) UpsertByURL(url, title, content string, nowMillis uint64) Document {
	for _, id := range ix.idsForURL(url) {
		ix.RemoveDocument(id)
	}
	doc := Document{
		ID:        ix.NextID(nowMillis),
		URL:       url,
		Title:     title,
		Content:   content,
		CreatedAt: nowMillis / 1000,
	}
	ix.IndexDocument(doc)
	return doc
}

func (ix *Index) idsForURL(url string) []uint64 {
	var ids []uint64
	for id, doc := range ix.docs {
		if doc.URL == url {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns the document stored under id.
func (ix *Index) Get(id uint64) (Document, bool) {
	doc, ok := ix.docs[id]
	return doc, ok
}

// Has reports whether a document is stored under id.
func (ix *Index) Has(id uint64) bool {
	_, ok := ix.docs[id]
	return ok
}

// Count is the number of stored documents.
func (ix *Index) Count() int {
	return len(ix.docs)
}

// TermCount is the number of distinct indexed terms.
func (ix *Index) TermCount() int {
	return len(ix.inverted)
}

// DocFreq is the number of documents whose postings include term.
func (ix *Index) DocFreq(term string) int {
	return len(ix.inverted[term])
}

// Postings returns the posting list for term ordered by document id, or nil
// when the term is not indexed.
func (ix *Index) Postings(term string) PostingList {
	docs, ok := ix.inverted[term]
	if !ok {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for id, tf := range docs {
		result = append(result, Posting{DocID: id, Frequency: tf})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// Documents returns every stored document ordered by id.
func (ix *Index) Documents() []Document {
	docs := make([]Document, 0, len(ix.docs))
	for _, doc := range ix.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// Terms returns every indexed term in lexical order.
func (ix *Index) Terms() []string {
	terms := make([]string, 0, len(ix.inverted))
	for term := range ix.inverted {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Restore builds an Index from persisted documents and postings without
// re-tokenizing. Empty posting lists and duplicate postings for one document
// are collapsed on the way in, and postings for ids with no stored document
// are dropped.
func Restore(docs []Document, inverted map[string]PostingList) *Index {
	ix := New()
	for _, doc := range docs {
		ix.docs[doc.ID] = doc
	}
	for term, list := range inverted {
		if len(list) == 0 {
			continue
		}
		postings := make(map[uint64]uint32, len(list))
		for _, p := range list {
			if _, stored := ix.docs[p.DocID]; !stored {
				continue
			}
			if _, dup := postings[p.DocID]; !dup {
				ix.docTerms[p.DocID] = append(ix.docTerms[p.DocID], term)
			}
			postings[p.DocID] = p.Frequency
		}
		if len(postings) > 0 {
			ix.inverted[term] = postings
		}
	}
	return ix
}

// Rebuild re-derives a fresh Index from docs alone, ignoring any persisted
// postings.
func Rebuild(docs []Document) *Index {
	ix := New()
	for _, doc := range docs {
		ix.IndexDocument(doc)
	}
	return ix
}

// InvertedSnapshot flattens the inverted index into sorted posting lists.
func (ix *Index) InvertedSnapshot() map[string]PostingList {
	out := make(map[string]PostingList, len(ix.inverted))
	for term := range ix.inverted {
		out[term] = ix.Postings(term)
	}
	return out
}
