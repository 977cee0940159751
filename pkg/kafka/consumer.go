// Package kafka provides the Kafka consumer and producer used for page events,
// backed by segmentio/kafka-go. Messages are JSON; the consumer hands each one
// to a MessageHandler and commits it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/local-page-index/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error leaves the message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  messageReader
	logger  *slog.Logger
	handler MessageHandler

	// minBackoff and maxBackoff bound the wait after consecutive fetch
	// failures.
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:     r,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:    handler,
		minBackoff: 100 * time.Millisecond,
		maxBackoff: 5 * time.Second,
	}
}

// Run fetches and handles messages until ctx is cancelled, then closes the
// reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()
	var backoff time.Duration
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			backoff = min(max(2*backoff, c.minBackoff), c.maxBackoff)
			c.logger.Error("failed to fetch message", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			continue
		}
		backoff = 0
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DecodeJSON unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
