// Package consumer applies page events read from Kafka to the index and
// announces each applied change on the index-complete topic.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/metrics"
)

const (
	ActionIndex  = "index"
	ActionRemove = "remove"
)

// PageEvent asks for a page to be indexed or a document to be removed.
// Index events carry url, title and content; remove events carry id.
type PageEvent struct {
	Action  string `json:"action"`
	ID      uint64 `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

// IndexedEvent reports a page event that has been applied.
type IndexedEvent struct {
	Action    string    `json:"action"`
	ID        uint64    `json:"id"`
	URL       string    `json:"url,omitempty"`
	Removed   bool      `json:"removed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Indexer is the part of the engine the consumer drives.
type Indexer interface {
	IndexPage(ctx context.Context, url, title, content string) (uint64, error)
	RemoveDocument(ctx context.Context, id uint64) (bool, error)
}

// Publisher sends IndexedEvents. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// IndexConsumer drives the page-event pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Run consumes until ctx is cancelled.
func (ic *IndexConsumer) Run(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Run(ctx)
}

// HandleMessage returns a MessageHandler that applies page events to idx.
// Undecodable, unknown or invalid events are logged and skipped. Other
// indexing failures are returned so the message stays uncommitted. pub and m
// may be nil.
func HandleMessage(idx Indexer, pub Publisher, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	count := func(action, status string) {
		if m != nil {
			m.PageEventsTotal.WithLabelValues(action, status).Inc()
		}
	}

	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PageEvent](value)
		if err != nil {
			logger.Error("failed to decode page event", "error", err, "key", string(key))
			count("unknown", "invalid")
			return nil
		}

		var done IndexedEvent
		switch event.Action {
		case ActionIndex:
			id, err := idx.IndexPage(ctx, event.URL, event.Title, event.Content)
			if err != nil {
				if errors.Is(err, apperrors.ErrInvalidInput) {
					logger.Warn("skipping invalid page event", "url", event.URL, "error", err)
					count(event.Action, "invalid")
					return nil
				}
				count(event.Action, "error")
				return fmt.Errorf("indexing %s: %w", event.URL, err)
			}
			done = IndexedEvent{Action: ActionIndex, ID: id, URL: event.URL}
			logger.Info("page indexed", "doc_id", id, "url", event.URL)

		case ActionRemove:
			if event.ID == 0 {
				logger.Warn("skipping remove event without id", "key", string(key))
				count(event.Action, "invalid")
				return nil
			}
			removed, err := idx.RemoveDocument(ctx, event.ID)
			if err != nil {
				count(event.Action, "error")
				return fmt.Errorf("removing document %d: %w", event.ID, err)
			}
			done = IndexedEvent{Action: ActionRemove, ID: event.ID, Removed: removed}
			logger.Info("document removed", "doc_id", event.ID, "found", removed)

		default:
			logger.Warn("skipping page event with unknown action", "action", event.Action)
			count("unknown", "invalid")
			return nil
		}

		count(event.Action, "ok")
		if pub == nil {
			return nil
		}
		done.Timestamp = time.Now().UTC()
		if err := pub.Publish(ctx, kafka.Event{Key: strconv.FormatUint(done.ID, 10), Value: done}); err != nil {
			logger.Error("failed to publish index-complete event", "doc_id", done.ID, "error", err)
		}
		return nil
	}
}
