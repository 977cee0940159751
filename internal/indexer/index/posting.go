package index

import (
	"encoding/json"
	"fmt"
	"math"
)

// Document is a single indexed page.
type Document struct {
	ID        uint64 `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt uint64 `json:"created_at"`
}

// Posting records how many times a term occurs in one document's title and
// content.
type Posting struct {
	DocID     uint64
	Frequency uint32
}

// PostingList holds one term's postings, ordered by document id.
type PostingList []Posting

// MarshalJSON encodes a posting as the pair [doc_id, term_frequency].
func (p Posting) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{p.DocID, uint64(p.Frequency)})
}

// UnmarshalJSON decodes the [doc_id, term_frequency] pair.
func (p *Posting) UnmarshalJSON(data []byte) error {
	var pair []uint64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding posting: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding posting: want [doc_id, tf], got %d elements", len(pair))
	}
	if pair[1] > math.MaxUint32 {
		return fmt.Errorf("decoding posting: term frequency %d overflows uint32", pair[1])
	}
	p.DocID = pair[0]
	p.Frequency = uint32(pair[1])
	return nil
}
