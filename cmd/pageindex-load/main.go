// Command pageindex-load seeds the local page index API with synthetic pages
// and then drives concurrent search traffic against it, reporting latency
// percentiles and status codes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var vocabulary = []string{
	"rust", "golang", "ownership", "borrowing", "goroutines", "channels",
	"kernel", "scheduler", "memory", "allocator", "compiler", "parser",
	"network", "protocol", "database", "index", "snippet", "ranking",
	"browser", "renderer", "layout", "tokenizer", "unicode", "storage",
}

type Stats struct {
	total    atomic.Int64
	failures atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, code int, err error) {
	s.total.Add(1)
	if err != nil || code < 200 || code >= 300 {
		s.failures.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:7700", "base URL of the page index API")
	pages := flag.Int("pages", 1000, "synthetic pages to index before the search phase (0 to skip)")
	concurrency := flag.Int("concurrency", 8, "concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "search phase duration")
	flag.Parse()

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Println("=== Page Index Load Test ===")
	fmt.Printf("Target:      %s\n", *baseURL)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Println()

	if *pages > 0 {
		seedStats := NewStats()
		if err := seed(context.Background(), client, *baseURL, *pages, *concurrency, seedStats); err != nil {
			fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
			os.Exit(1)
		}
		printReport("Indexing", seedStats, 0)
	}

	searchStats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	search(ctx, client, *baseURL, *concurrency, searchStats)
	printReport("Search", searchStats, *duration)

	if searchStats.total.Load() == 0 {
		fmt.Println("WARNING: no requests completed. Is pageindexd running?")
		os.Exit(1)
	}
}

func seed(ctx context.Context, client *http.Client, baseURL string, pages, concurrency int, stats *Stats) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < pages; i++ {
		g.Go(func() error {
			body, err := json.Marshal(map[string]string{
				"url":     fmt.Sprintf("https://load.test/page/%d", i),
				"title":   fmt.Sprintf("%s %s notes", word(i), word(i*7+3)),
				"content": fmt.Sprintf("%s %s %s and %s", word(i+1), word(i*3), word(i*5+2), word(i*11+1)),
			})
			if err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/pages", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			code, d, err := do(client, req)
			stats.Record(d, code, err)
			if err != nil {
				return fmt.Errorf("indexing page %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func search(ctx context.Context, client *http.Client, baseURL string, concurrency int, stats *Stats) {
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				q := word(i) + " " + word(i*13+5)
				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", baseURL, url.QueryEscape(q))
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.Record(0, 0, err)
					continue
				}
				code, d, err := do(client, req)
				if ctx.Err() != nil {
					return
				}
				stats.Record(d, code, err)
			}
		}()
	}
	wg.Wait()
}

func do(client *http.Client, req *http.Request) (int, time.Duration, error) {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func word(i int) string {
	if i < 0 {
		i = -i
	}
	return vocabulary[i%len(vocabulary)]
}

func printReport(phase string, stats *Stats, duration time.Duration) {
	total := stats.total.Load()
	failures := stats.failures.Load()

	fmt.Printf("=== %s ===\n", phase)
	fmt.Printf("Requests:     %d\n", total)
	fmt.Printf("Failures:     %d\n", failures)
	if total > 0 && duration > 0 {
		fmt.Printf("Requests/sec: %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  HTTP %d: %d\n", code, stats.codes[code])
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Printf("Latency min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
			latencies[0],
			sum/time.Duration(len(latencies)),
			percentile(latencies, 50),
			percentile(latencies, 95),
			percentile(latencies, 99),
			latencies[len(latencies)-1],
		)
	}
	fmt.Println()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
