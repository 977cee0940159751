// Package aggregator persists periodic snapshots of the search analytics
// aggregate to PostgreSQL.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/resilience"
)

const schema = `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at_idx
    ON analytics_snapshots (captured_at DESC);
`

// DB is satisfied by *sql.DB.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store writes analytics snapshots to the analytics_snapshots table.
type Store struct {
	db     DB
	retry  resilience.RetryConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(db DB) *Store {
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics schema: %w", err)
	}
	return nil
}

// SaveSnapshot inserts stats, retrying transient failures.
func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	capturedAt := s.now().UTC()
	err = resilience.Retry(ctx, "analytics-snapshot", s.retry, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, capturedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_pages_indexed", stats.TotalPagesIndexed,
	)
	return nil
}

// LatestSnapshot returns the most recent snapshot, or nil if there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// Run snapshots agg every interval until ctx is done, then writes a final
// snapshot with a short deadline. Write failures are logged, not returned.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic analytics snapshot started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return nil
		}
	}
}
