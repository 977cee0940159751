package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexPage  EventType = "index_page"
	EventRemovePage EventType = "remove_page"
	EventRebuild    EventType = "rebuild"
)

// SearchEvent describes one executed query.
type SearchEvent struct {
	Type      EventType     `json:"type"`
	Query     string        `json:"query"`
	Terms     []string      `json:"terms"`
	Returned  int           `json:"returned"`
	Latency   time.Duration `json:"latency_ns"`
	CacheHit  bool          `json:"cache_hit"`
	Timestamp time.Time     `json:"timestamp"`
}

// IndexEvent describes a change to the document store.
type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID uint64    `json:"document_id"`
	URL        string    `json:"url,omitempty"`
	TokenCount int       `json:"token_count"`
	SizeBytes  int       `json:"size_bytes"`
	Documents  int       `json:"documents"`
	Timestamp  time.Time `json:"timestamp"`
}
