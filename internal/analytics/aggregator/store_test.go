package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/resilience"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	mu       sync.Mutex
	calls    []execCall
	failures int
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{query: query, args: args})
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return nil, nil
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic("not used")
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	panic("not used")
}

func (f *fakeDB) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestStore(db DB) *Store {
	s := NewStore(db)
	s.retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestSaveSnapshotWritesJSON(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(db)

	require.NoError(t, s.SaveSnapshot(context.Background(), analytics.AggregatedStats{TotalSearches: 7}))
	require.Len(t, db.calls, 1)

	var stats analytics.AggregatedStats
	require.NoError(t, json.Unmarshal(db.calls[0].args[0].([]byte), &stats))
	assert.Equal(t, int64(7), stats.TotalSearches)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), db.calls[0].args[1])
}

func TestSaveSnapshotRetries(t *testing.T) {
	db := &fakeDB{failures: 2}
	s := newTestStore(db)

	require.NoError(t, s.SaveSnapshot(context.Background(), analytics.AggregatedStats{}))
	assert.Equal(t, 3, db.callCount())
}

func TestSaveSnapshotGivesUp(t *testing.T) {
	db := &fakeDB{failures: 5}
	s := newTestStore(db)

	err := s.SaveSnapshot(context.Background(), analytics.AggregatedStats{})
	assert.Error(t, err)
	assert.Equal(t, 3, db.callCount())
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, newTestStore(db).EnsureSchema(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS analytics_snapshots")
}

func TestRunWritesFinalSnapshot(t *testing.T) {
	db := &fakeDB{}
	s := newTestStore(db)
	agg := analytics.NewAggregator()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, agg, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, db.callCount())
}
