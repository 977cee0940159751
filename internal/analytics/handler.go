package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler serves the aggregate at /api/v1/analytics, alongside whatever the
// index reports about itself.
type Handler struct {
	aggregator *Aggregator
	indexStats func() any
	logger     *slog.Logger
}

// NewHandler returns a Handler. indexStats may be nil.
func NewHandler(aggregator *Aggregator, indexStats func() any) *Handler {
	return &Handler{
		aggregator: aggregator,
		indexStats: indexStats,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

type statsResponse struct {
	Search AggregatedStats `json:"search"`
	Index  any             `json:"index,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := statsResponse{Search: h.aggregator.Stats()}
	if h.indexStats != nil {
		resp.Index = h.indexStats()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
