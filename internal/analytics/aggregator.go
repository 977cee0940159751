// Package analytics aggregates search and indexing activity in process and
// serves the aggregate over HTTP.
package analytics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	maxLatencySamples = 10000
	topQueryCount     = 10
	// maxTrackedQueries bounds each per-query count map. When a map grows
	// past it, only the most frequent half survives.
	maxTrackedQueries = 5000
)

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalPagesIndexed int64        `json:"total_pages_indexed"`
	TotalPagesRemoved int64        `json:"total_pages_removed"`
	Rebuilds          int64        `json:"rebuilds"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals of search and index events. Latencies are
// kept in a ring of the most recent samples.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	totalIndexed      int64
	totalRemoved      int64
	rebuilds          int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []time.Duration
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	maxQueries        int
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]time.Duration, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		maxQueries:        maxTrackedQueries,
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records a SearchEvent or IndexEvent. Other values are ignored.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.RecordSearch(e)
	case *SearchEvent:
		a.RecordSearch(*e)
	case IndexEvent:
		a.RecordIndex(e)
	case *IndexEvent:
		a.RecordIndex(*e)
	default:
		a.logger.Debug("ignoring unknown analytics event", "type", event)
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	query := normalizeQuery(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.Latency)
	} else {
		a.latencies[a.nextLatency] = event.Latency
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
	if query == "" {
		return
	}
	a.queryCounts = a.bump(a.queryCounts, query)
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries = a.bump(a.zeroResultQueries, query)
	}
}

// bump increments query in counts, trimming counts to its most frequent
// entries once it exceeds maxQueries.
func (a *Aggregator) bump(counts map[string]int64, query string) map[string]int64 {
	counts[query]++
	if len(counts) <= a.maxQueries {
		return counts
	}
	keep := topN(counts, a.maxQueries/2)
	trimmed := make(map[string]int64, len(keep))
	for _, qc := range keep {
		trimmed[qc.Query] = qc.Count
	}
	a.logger.Debug("trimmed query counts", "from", len(counts), "to", len(trimmed))
	return trimmed
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch event.Type {
	case EventRemovePage:
		a.totalRemoved++
	case EventRebuild:
		a.rebuilds++
	default:
		a.totalIndexed++
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		TotalPagesIndexed: a.totalIndexed,
		TotalPagesRemoved: a.totalRemoved,
		Rebuilds:          a.rebuilds,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
	}
	if len(a.latencies) > 0 {
		sorted := make([]time.Duration, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = millis(sum) / float64(len(sorted))
		stats.P50LatencyMs = millis(percentile(sorted, 50))
		stats.P95LatencyMs = millis(percentile(sorted, 95))
		stats.P99LatencyMs = millis(percentile(sorted, 99))
	}
	stats.TopQueries = topN(a.queryCounts, topQueryCount)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryCount)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func percentile(sorted []time.Duration, pct int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query text so equal counts are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
