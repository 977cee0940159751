package analytics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorCountsSearches(t *testing.T) {
	agg := NewAggregator()
	agg.Track(SearchEvent{Type: EventSearch, Query: "Rust Guide", Returned: 2, Latency: 2 * time.Millisecond})
	agg.Track(SearchEvent{Type: EventSearch, Query: "rust  guide", Returned: 1, Latency: 4 * time.Millisecond, CacheHit: true})
	agg.Track(&SearchEvent{Type: EventSearch, Query: "zig", Returned: 0, Latency: 6 * time.Millisecond})
	agg.Track("not an event")

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 4.0, stats.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 4.0, stats.P50LatencyMs, 1e-9)
	assert.InDelta(t, 6.0, stats.P99LatencyMs, 1e-9)

	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "rust guide", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zig", Count: 1}}, stats.ZeroResultQueries)
}

func TestAggregatorEmptyQueryNotRanked(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "   ", Returned: 0})

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Empty(t, stats.TopQueries)
	assert.Zero(t, stats.ZeroResultCount)
}

func TestAggregatorIndexEvents(t *testing.T) {
	agg := NewAggregator()
	agg.Track(IndexEvent{Type: EventIndexPage, DocumentID: 1})
	agg.Track(IndexEvent{Type: EventIndexPage, DocumentID: 2})
	agg.Track(IndexEvent{Type: EventRemovePage, DocumentID: 1})
	agg.Track(&IndexEvent{Type: EventRebuild, Documents: 1})

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.TotalPagesIndexed)
	assert.Equal(t, int64(1), stats.TotalPagesRemoved)
	assert.Equal(t, int64(1), stats.Rebuilds)
}

func TestAggregatorLatencyRingIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+50; i++ {
		agg.RecordSearch(SearchEvent{Query: "q", Returned: 1, Latency: time.Millisecond})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
}

func TestAggregatorQueryMapsAreBounded(t *testing.T) {
	agg := NewAggregator()
	agg.maxQueries = 4
	for i := 0; i < 3; i++ {
		agg.RecordSearch(SearchEvent{Query: "popular", Returned: 1})
	}
	for i := 0; i < 10; i++ {
		agg.RecordSearch(SearchEvent{Query: fmt.Sprintf("rare %d", i), Returned: 0})
	}

	assert.LessOrEqual(t, len(agg.queryCounts), 4)
	assert.LessOrEqual(t, len(agg.zeroResultQueries), 4)
	stats := agg.Stats()
	assert.Equal(t, int64(13), stats.TotalSearches)
	assert.Equal(t, int64(10), stats.ZeroResultCount)
	assert.Equal(t, QueryCount{Query: "popular", Count: 3}, stats.TopQueries[0])
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "rust", Returned: 1})
	h := NewHandler(agg, func() any { return map[string]int{"documents": 3} })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Search AggregatedStats `json:"search"`
		Index  map[string]int  `json:"index"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Search.TotalSearches)
	assert.Equal(t, 3, body.Index["documents"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
