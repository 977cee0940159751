// Package handler exposes the page index to local collaborators over HTTP:
// the page renderer submits and removes pages, the UI searches.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/logger"
)

const maxBodyBytes = 16 << 20

// Index is the engine surface the API serves.
type Index interface {
	IndexPage(ctx context.Context, url, title, content string) (uint64, error)
	RemoveDocument(ctx context.Context, id uint64) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]indexer.SearchResult, error)
	GetDocument(ctx context.Context, id uint64) (indexer.Document, bool)
	RebuildIndex(ctx context.Context) (int, error)
	IndexCount(ctx context.Context) int
	Stats() indexer.Stats
}

// CacheAdmin is implemented by the query cache.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

type Handler struct {
	index  Index
	cache  CacheAdmin
	logger *slog.Logger
}

// New returns a Handler. cache may be nil when caching is disabled.
func New(index Index, cache CacheAdmin) *Handler {
	return &Handler{
		index:  index,
		cache:  cache,
		logger: slog.Default().With("component", "api-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/pages", h.IndexPage)
	mux.HandleFunc("GET /api/v1/pages/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/pages/{id}", h.RemoveDocument)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Results []indexer.SearchResult `json:"results"`
}

// Search answers GET /api/v1/search?q=...&limit=N. An omitted limit uses the
// engine default.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	results, err := h.index.Search(r.Context(), query, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Debug("search completed", "query", query, "returned", len(results))
	h.writeJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(results), Results: results})
}

type indexRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// IndexPage answers POST /api/v1/pages with a JSON {url, title, content}
// body and returns the new id.
func (h *Handler) IndexPage(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, "invalid request body: %v", err))
		return
	}
	id, err := h.index.IndexPage(r.Context(), req.URL, req.Title, req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, found := h.index.GetDocument(r.Context(), id)
	if !found {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrDocumentNotFound, "document %d not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	removed, err := h.index.RemoveDocument(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrDocumentNotFound, "document %d not found", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.index.RebuildIndex(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"documents": n})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, "invalid document id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Messages of server-side failures
// are logged, not returned.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
