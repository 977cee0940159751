// Package indexer owns the page index: the document store and inverted index
// held in memory, loaded once from the snapshot file and written back
// according to the configured flush policy.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/metrics"
)

type (
	Document     = index.Document
	SearchResult = ranker.Result
)

// QueryCache is the read-through result cache consulted by Search.
// Generation changes on every mutation and must be part of the cache key.
type QueryCache interface {
	GetOrCompute(ctx context.Context, query string, limit int, generation uint64,
		compute func() ([]ranker.Result, error)) ([]ranker.Result, bool, error)
	Invalidate(ctx context.Context) error
}

// Tracker receives analytics.SearchEvent and analytics.IndexEvent values.
type Tracker interface {
	Track(event any)
}

// Options carries the optional collaborators of an Engine. The zero value is
// a bare engine with no cache, metrics or analytics.
type Options struct {
	Search       config.SearchConfig
	Metrics      *metrics.Metrics
	Cache        QueryCache
	Tracker      Tracker
	OnCorruption func(error)
	Now          func() time.Time
}

// Stats describes the engine's current state.
type Stats struct {
	Documents int    `json:"documents"`
	Terms     int    `json:"terms"`
	Dirty     bool   `json:"dirty"`
	Path      string `json:"path"`
	LoadError string `json:"load_error,omitempty"`
}

// Engine serialises every operation on the index: reads share the lock,
// mutations hold it exclusively. It is safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	ix         *index.Index
	dirty      bool
	generation uint64
	loadErr    error

	cfg    config.IndexerConfig
	search config.SearchConfig
	path   string
	opts   Options
	logger *slog.Logger
}

// NewEngine loads the snapshot at cfg.SnapshotPath(). A missing file starts
// an empty index. An unreadable file also starts an empty index: the
// corruption is logged, counted, passed to Options.OnCorruption and kept for
// LoadError; it is not returned.
func NewEngine(cfg config.IndexerConfig, opts Options) (*Engine, error) {
	switch cfg.FlushPolicy {
	case "", config.FlushOnMutation:
		cfg.FlushPolicy = config.FlushOnMutation
	case config.FlushInterval:
		if cfg.FlushInterval <= 0 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "flush interval must be positive, got %s", cfg.FlushInterval)
		}
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown flush policy %q", cfg.FlushPolicy)
	}
	if cfg.MaxIDProbes <= 0 {
		cfg.MaxIDProbes = index.DefaultMaxIDProbes
	}
	if opts.Search.DefaultLimit <= 0 {
		opts.Search.DefaultLimit = ranker.DefaultLimit
	}
	if opts.Search.MaxResults < opts.Search.DefaultLimit {
		opts.Search.MaxResults = opts.Search.DefaultLimit
	}
	if opts.Search.SnippetLength <= 0 {
		opts.Search.SnippetLength = ranker.DefaultSnippetLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		cfg:    cfg,
		search: opts.Search,
		path:   cfg.SnapshotPath(),
		opts:   opts,
		logger: slog.Default().With("component", "indexer"),
	}
	// Cache keys carry the generation; seeding it from the clock keeps a
	// restarted process from reading entries written by an earlier one.
	e.generation = uint64(opts.Now().UnixNano())

	snap, err := snapshot.Load(e.path)
	if err != nil {
		var corrupt *snapshot.CorruptionError
		if !errors.As(err, &corrupt) {
			return nil, fmt.Errorf("loading index: %w", err)
		}
		e.loadErr = err
		e.logger.Warn("index file unreadable, starting with an empty index",
			"path", e.path,
			"error", err,
		)
		if opts.Metrics != nil {
			opts.Metrics.SnapshotCorruptionsTotal.Inc()
		}
		if opts.OnCorruption != nil {
			opts.OnCorruption(err)
		}
	}
	e.ix = snap.Index()
	e.ix.SetMaxIDProbes(cfg.MaxIDProbes)
	e.observeSizeLocked()

	e.logger.Info("index loaded",
		"path", e.path,
		"documents", e.ix.Count(),
		"terms", e.ix.TermCount(),
		"flush_policy", cfg.FlushPolicy,
	)
	return e, nil
}

// IndexPage stores a page, replacing any document with the same URL, and
// returns its new id. If the snapshot write fails the page is still indexed
// in memory; the id is returned together with an error wrapping
// ErrPersistence.
func (e *Engine) IndexPage(ctx context.Context, url, title, content string) (uint64, error) {
	if strings.TrimSpace(url) == "" {
		return 0, apperrors.New(apperrors.ErrInvalidInput, "url must not be empty")
	}

	e.mu.Lock()
	doc := e.ix.UpsertByURL(url, title, content, uint64(e.opts.Now().UnixMilli()))
	e.markDirtyLocked()
	err := e.persistLocked()
	e.mu.Unlock()

	if e.opts.Metrics != nil {
		e.opts.Metrics.DocsIndexedTotal.Inc()
	}
	e.invalidate(ctx)
	e.track(analytics.IndexEvent{
		Type:       analytics.EventIndexPage,
		DocumentID: doc.ID,
		URL:        url,
		TokenCount: len(tokenizer.Tokenize(title)) + len(tokenizer.Tokenize(content)),
		SizeBytes:  len(title) + len(content),
		Timestamp:  e.opts.Now(),
	})
	e.logger.Debug("page indexed", "doc_id", doc.ID, "url", url)

	if err != nil {
		return doc.ID, fmt.Errorf("indexing %s: %w", url, err)
	}
	return doc.ID, nil
}

// RemoveDocument deletes the document with id. It reports false, and writes
// nothing, when no such document exists.
func (e *Engine) RemoveDocument(ctx context.Context, id uint64) (bool, error) {
	e.mu.Lock()
	if !e.ix.RemoveDocument(id) {
		e.mu.Unlock()
		return false, nil
	}
	e.markDirtyLocked()
	err := e.persistLocked()
	e.mu.Unlock()

	if e.opts.Metrics != nil {
		e.opts.Metrics.DocsRemovedTotal.Inc()
	}
	e.invalidate(ctx)
	e.track(analytics.IndexEvent{
		Type:       analytics.EventRemovePage,
		DocumentID: id,
		Timestamp:  e.opts.Now(),
	})
	e.logger.Debug("document removed", "doc_id", id)

	if err != nil {
		return true, fmt.Errorf("removing document %d: %w", id, err)
	}
	return true, nil
}

// Search returns up to limit results for query, best first. A non-positive
// limit uses the configured default; larger limits are capped at the
// configured maximum. Queries with no indexable terms return no results.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	start := time.Now()
	if limit <= 0 {
		limit = e.search.DefaultLimit
	}
	if limit > e.search.MaxResults {
		limit = e.search.MaxResults
	}

	terms := tokenizer.Tokenize(query)
	if len(terms) == 0 {
		e.observeSearch(query, terms, nil, false, "empty_query", start)
		return []SearchResult{}, nil
	}

	compute := func() ([]ranker.Result, error) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		return ranker.ToResults(ranker.Rank(e.ix, query, limit), e.search.SnippetLength), nil
	}

	var (
		results  []SearchResult
		cacheHit bool
		err      error
	)
	if e.opts.Cache != nil {
		results, cacheHit, err = e.opts.Cache.GetOrCompute(ctx, query, limit, e.currentGeneration(), compute)
		if err != nil {
			e.logger.Warn("cached search failed, querying index directly", "error", err)
			results, err = compute()
			cacheHit = false
		}
	} else {
		results, err = compute()
	}
	if err != nil {
		e.observeSearch(query, terms, nil, false, "error", start)
		return nil, apperrors.Newf(apperrors.ErrInternal, "searching %q: %v", query, err)
	}

	resultType := "hit"
	if len(results) == 0 {
		resultType = "zero_result"
	}
	e.observeSearch(query, terms, results, cacheHit, resultType, start)
	return results, nil
}

// GetDocument returns the stored document with id.
func (e *Engine) GetDocument(_ context.Context, id uint64) (Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ix.Get(id)
}

// IndexCount returns the number of stored documents.
func (e *Engine) IndexCount(_ context.Context) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ix.Count()
}

// RebuildIndex discards the persisted inverted index and rebuilds it from
// the document list in the snapshot file, then saves the result. Pending
// changes are flushed first so they take part in the rebuild. It returns the
// number of documents indexed; a missing file yields 0.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	e.mu.Lock()
	if err := e.flushLocked(); err != nil {
		e.mu.Unlock()
		e.countRebuild("error")
		return 0, fmt.Errorf("flushing before rebuild: %w", err)
	}
	docs, found, err := snapshot.ReadDocuments(e.path)
	if err != nil {
		e.mu.Unlock()
		e.countRebuild("error")
		return 0, fmt.Errorf("rebuilding index: %w", err)
	}
	if !found {
		e.mu.Unlock()
		e.countRebuild("missing")
		e.logger.Info("no index file to rebuild from", "path", e.path)
		return 0, nil
	}

	e.ix = index.Rebuild(docs)
	e.ix.SetMaxIDProbes(e.cfg.MaxIDProbes)
	e.loadErr = nil
	e.markDirtyLocked()
	saveErr := e.flushLocked()
	count := e.ix.Count()
	terms := e.ix.TermCount()
	e.mu.Unlock()

	e.invalidate(ctx)
	e.track(analytics.IndexEvent{
		Type:      analytics.EventRebuild,
		Documents: count,
		Timestamp: e.opts.Now(),
	})
	if saveErr != nil {
		e.countRebuild("error")
		return count, fmt.Errorf("saving rebuilt index: %w", saveErr)
	}
	e.countRebuild("success")
	e.logger.Info("index rebuilt", "documents", count, "terms", terms)
	return count, nil
}

// Flush writes the snapshot if there are unsaved changes.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

// RunFlushLoop flushes every FlushInterval until ctx is done, then flushes
// once more. With the mutation policy there is nothing to do between
// mutations, so it only waits for ctx.
func (e *Engine) RunFlushLoop(ctx context.Context) error {
	if e.cfg.FlushPolicy != config.FlushInterval {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("flush loop stopping, performing final flush")
			if err := e.Flush(); err != nil {
				e.logger.Error("final flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := e.Flush(); err != nil {
				e.logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}

// Close flushes pending changes.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return fmt.Errorf("final flush on close: %w", err)
	}
	return nil
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		Documents: e.ix.Count(),
		Terms:     e.ix.TermCount(),
		Dirty:     e.dirty,
		Path:      e.path,
	}
	if e.loadErr != nil {
		s.LoadError = e.loadErr.Error()
	}
	return s
}

// LoadError returns the corruption found when the engine loaded its
// snapshot, or nil. A successful rebuild clears it.
func (e *Engine) LoadError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loadErr
}

func (e *Engine) markDirtyLocked() {
	e.dirty = true
	e.generation++
	e.observeSizeLocked()
}

func (e *Engine) persistLocked() error {
	if e.cfg.FlushPolicy != config.FlushOnMutation {
		return nil
	}
	return e.flushLocked()
}

// flushLocked leaves the engine dirty when the write fails so the next
// flush retries it.
func (e *Engine) flushLocked() error {
	if !e.dirty {
		return nil
	}
	if err := snapshot.Save(e.path, snapshot.FromIndex(e.ix)); err != nil {
		e.countFlush("error")
		e.logger.Error("index flush failed", "path", e.path, "error", err)
		return err
	}
	e.dirty = false
	e.countFlush("success")
	return nil
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.opts.Cache == nil {
		return
	}
	if err := e.opts.Cache.Invalidate(ctx); err != nil {
		e.logger.Warn("cache invalidation failed", "error", err)
	}
}

func (e *Engine) track(event any) {
	if e.opts.Tracker != nil {
		e.opts.Tracker.Track(event)
	}
}

func (e *Engine) observeSizeLocked() {
	if e.opts.Metrics == nil {
		return
	}
	e.opts.Metrics.DocumentCount.Set(float64(e.ix.Count()))
	e.opts.Metrics.TermCount.Set(float64(e.ix.TermCount()))
}

func (e *Engine) observeSearch(query string, terms []string, results []SearchResult, cacheHit bool, resultType string, start time.Time) {
	elapsed := time.Since(start)
	if m := e.opts.Metrics; m != nil {
		cacheStatus := "miss"
		switch {
		case e.opts.Cache == nil:
			cacheStatus = "disabled"
		case cacheHit:
			cacheStatus = "hit"
		}
		m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		m.SearchResultsCount.Observe(float64(len(results)))
	}
	e.track(analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Terms:     terms,
		Returned:  len(results),
		Latency:   elapsed,
		CacheHit:  cacheHit,
		Timestamp: e.opts.Now(),
	})
}

func (e *Engine) countFlush(status string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) countRebuild(status string) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.RebuildsTotal.WithLabelValues(status).Inc()
	}
}
