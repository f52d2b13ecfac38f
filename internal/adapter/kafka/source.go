package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/user/login-stream-processor/internal/domain"
)

// messageReader is the subset of kafka.Reader the source depends on.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Source implements domain.EventSource on top of a kafka-go consumer-group
// reader. It is owned by the processing loop and is not safe for concurrent
// use.
type Source struct {
	reader      messageReader
	logger      *slog.Logger
	topic       string
	pollTimeout time.Duration

	// Highest acked offset per partition since the last commit. Committing
	// one offset commits everything before it on that partition, so only the
	// newest needs to be kept. Fetched messages enter this map only through
	// Ack, so a batch abandoned mid-processing is redelivered, not lost.
	acked map[int]int64
}

// NewSource creates a consumer-group source for the given topic. The broker
// assigns a disjoint partition subset to each group member, which is what
// allows multiple processor instances to run side by side.
func NewSource(brokers []string, topic, group string, pollTimeout time.Duration, logger *slog.Logger) *Source {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     group,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10 * 1024 * 1024,
		MaxWait:     pollTimeout,
		StartOffset: kafka.FirstOffset,
	})
	return newSource(reader, topic, pollTimeout, logger)
}

func newSource(reader messageReader, topic string, pollTimeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		reader:      reader,
		logger:      logger.With("component", "kafka_source"),
		topic:       topic,
		pollTimeout: pollTimeout,
		acked:       make(map[int]int64),
	}
}

// FetchBatch reads up to max messages, waiting at most the poll timeout.
// Hitting the timeout with a partial (or empty) batch is not an error. On
// cancellation the records fetched so far are returned with the context
// error so the caller can finish processing them before draining.
func (s *Source) FetchBatch(ctx context.Context, max int) ([]domain.Message, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	batch := make([]domain.Message, 0, max)
	for len(batch) < max {
		msg, err := s.reader.FetchMessage(pollCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break // poll timeout expired, return what we have
			}
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			return batch, fmt.Errorf("fetch from input stream: %w", err)
		}

		batch = append(batch, domain.Message{
			Key:       msg.Key,
			Value:     msg.Value,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		})
	}
	return batch, nil
}

// Ack marks one message as processed so its offset can be committed.
func (s *Source) Ack(msg domain.Message) {
	if off, ok := s.acked[msg.Partition]; !ok || msg.Offset > off {
		s.acked[msg.Partition] = msg.Offset
	}
}

// Commit acknowledges every message acked since the previous commit.
func (s *Source) Commit(ctx context.Context) error {
	if len(s.acked) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(s.acked))
	for partition, offset := range s.acked {
		msgs = append(msgs, kafka.Message{Topic: s.topic, Partition: partition, Offset: offset})
	}
	if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	s.logger.Debug("committed offsets", "partitions", len(msgs))
	s.acked = make(map[int]int64)
	return nil
}

// Close leaves the consumer group and releases the reader.
func (s *Source) Close() error {
	return s.reader.Close()
}
