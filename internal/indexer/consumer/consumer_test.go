package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/metrics"
)

type fakeIndexer struct {
	indexed  []PageEvent
	removed  []uint64
	indexErr error
	nextID   uint64
}

func (f *fakeIndexer) IndexPage(_ context.Context, url, title, content string) (uint64, error) {
	if f.indexErr != nil {
		return 0, f.indexErr
	}
	f.nextID++
	f.indexed = append(f.indexed, PageEvent{URL: url, Title: title, Content: content})
	return f.nextID, nil
}

func (f *fakeIndexer) RemoveDocument(_ context.Context, id uint64) (bool, error) {
	f.removed = append(f.removed, id)
	return id == 1, nil
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event kafka.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func encode(t *testing.T, e PageEvent) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return data
}

func TestHandleIndexEvent(t *testing.T) {
	idx := &fakeIndexer{}
	pub := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry())
	handle := HandleMessage(idx, pub, m)

	err := handle(context.Background(), nil, encode(t, PageEvent{Action: ActionIndex, URL: "https://a", Title: "A", Content: "body"}))
	require.NoError(t, err)

	require.Len(t, idx.indexed, 1)
	assert.Equal(t, "https://a", idx.indexed[0].URL)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "1", pub.events[0].Key)
	done := pub.events[0].Value.(IndexedEvent)
	assert.Equal(t, ActionIndex, done.Action)
	assert.Equal(t, uint64(1), done.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageEventsTotal.WithLabelValues(ActionIndex, "ok")))
}

func TestHandleRemoveEvent(t *testing.T) {
	idx := &fakeIndexer{}
	pub := &fakePublisher{}
	handle := HandleMessage(idx, pub, nil)

	require.NoError(t, handle(context.Background(), nil, encode(t, PageEvent{Action: ActionRemove, ID: 1})))
	require.NoError(t, handle(context.Background(), nil, encode(t, PageEvent{Action: ActionRemove, ID: 9})))

	assert.Equal(t, []uint64{1, 9}, idx.removed)
	require.Len(t, pub.events, 2)
	assert.True(t, pub.events[0].Value.(IndexedEvent).Removed)
	assert.False(t, pub.events[1].Value.(IndexedEvent).Removed)
}

func TestHandleSkipsBadEvents(t *testing.T) {
	idx := &fakeIndexer{}
	pub := &fakePublisher{}
	handle := HandleMessage(idx, pub, nil)
	ctx := context.Background()

	assert.NoError(t, handle(ctx, []byte("k"), []byte("{broken")))
	assert.NoError(t, handle(ctx, nil, encode(t, PageEvent{Action: "archive"})))
	assert.NoError(t, handle(ctx, nil, encode(t, PageEvent{Action: ActionRemove})))

	idx.indexErr = apperrors.New(apperrors.ErrInvalidInput, "url must not be empty")
	assert.NoError(t, handle(ctx, nil, encode(t, PageEvent{Action: ActionIndex})))

	assert.Empty(t, idx.removed)
	assert.Empty(t, pub.events)
}

func TestHandleReturnsPersistenceErrors(t *testing.T) {
	idx := &fakeIndexer{indexErr: apperrors.New(apperrors.ErrPersistence, "disk full")}
	handle := HandleMessage(idx, nil, nil)

	err := handle(context.Background(), nil, encode(t, PageEvent{Action: ActionIndex, URL: "https://a"}))
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestPublishFailureDoesNotFailMessage(t *testing.T) {
	idx := &fakeIndexer{}
	pub := &fakePublisher{err: errors.New("broker down")}
	handle := HandleMessage(idx, pub, nil)

	err := handle(context.Background(), nil, encode(t, PageEvent{Action: ActionIndex, URL: "https://a"}))
	assert.NoError(t, err)
	assert.Len(t, idx.indexed, 1)
}
