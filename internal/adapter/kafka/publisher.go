package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/user/login-stream-processor/internal/adapter/metrics"
	"github.com/user/login-stream-processor/internal/domain"
)

// ErrPublisherFailing is returned once an output topic has rejected too many
// consecutive delivery attempts. The processing loop treats it as fatal.
var ErrPublisherFailing = errors.New("publisher exceeded consecutive failure limit")

// messageWriter is the subset of kafka.Writer the publisher depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements domain.EventPublisher with one buffered writer per
// output topic. Publish calls append to an in-memory buffer and only hit the
// broker when the buffer fills or Flush is called, so the processing loop is
// never blocked waiting for per-message acknowledgment. Like the source, it
// is owned by the loop and not safe for concurrent use.
type Publisher struct {
	enriched   *topicBuffer
	snapshots  *topicBuffer
	instanceID string
}

type topicBuffer struct {
	topic       string
	writer      messageWriter
	logger      *slog.Logger
	m           *metrics.PipelineMetrics
	buf         []kafka.Message
	maxBuffered int
	maxFailures int
	failures    int
}

// NewPublisher creates writers for the enriched and aggregate topics.
// Enriched messages are keyed by user id for stable partitioning; snapshots
// are keyed by the instance id so each instance's aggregates stay in order.
func NewPublisher(brokers []string, enrichedTopic, aggregateTopic, instanceID string, maxBuffered, maxFailures int, m *metrics.PipelineMetrics, logger *slog.Logger) *Publisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		}
	}
	return &Publisher{
		enriched:   newTopicBuffer(enrichedTopic, newWriter(enrichedTopic), maxBuffered, maxFailures, m, logger),
		snapshots:  newTopicBuffer(aggregateTopic, newWriter(aggregateTopic), maxBuffered, maxFailures, m, logger),
		instanceID: instanceID,
	}
}

func newTopicBuffer(topic string, writer messageWriter, maxBuffered, maxFailures int, m *metrics.PipelineMetrics, logger *slog.Logger) *topicBuffer {
	return &topicBuffer{
		topic:       topic,
		writer:      writer,
		logger:      logger.With("component", "kafka_publisher", "topic", topic),
		m:           m,
		maxBuffered: maxBuffered,
		maxFailures: maxFailures,
	}
}

// PublishEnriched buffers one enriched event for the enriched output topic.
func (p *Publisher) PublishEnriched(ctx context.Context, event domain.EnrichedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal enriched event: %w", err)
	}
	return p.enriched.append(ctx, kafka.Message{Key: []byte(event.UserID), Value: payload})
}

// PublishSnapshot buffers one aggregate snapshot for the aggregate topic.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap domain.UsageSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal usage snapshot: %w", err)
	}
	return p.snapshots.append(ctx, kafka.Message{Key: []byte(p.instanceID), Value: payload})
}

// Flush forces delivery of everything buffered on both topics.
func (p *Publisher) Flush(ctx context.Context) error {
	return errors.Join(p.enriched.flush(ctx), p.snapshots.flush(ctx))
}

// Close flushes remaining messages and releases both writers.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	flushErr := p.Flush(ctx)
	closeErr := errors.Join(p.enriched.writer.Close(), p.snapshots.writer.Close())
	return errors.Join(flushErr, closeErr)
}

func (b *topicBuffer) append(ctx context.Context, msg kafka.Message) error {
	b.buf = append(b.buf, msg)
	if len(b.buf) >= b.maxBuffered {
		return b.flush(ctx)
	}
	return nil
}

// flush writes the buffer synchronously. On failure the messages are
// retained and retried on the next flush; only crossing the consecutive
// failure limit surfaces an error.
func (b *topicBuffer) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}

	if err := b.writer.WriteMessages(ctx, b.buf...); err != nil {
		b.failures++
		b.m.PublishErrorsTotal.WithLabelValues(b.topic).Inc()
		b.logger.Error("failed to deliver batch",
			"error", err,
			"count", len(b.buf),
			"first_key", string(b.buf[0].Key),
			"consecutive_failures", b.failures,
		)
		if b.failures >= b.maxFailures {
			return fmt.Errorf("topic %s after %d attempts: %w", b.topic, b.failures, ErrPublisherFailing)
		}
		return nil
	}

	b.failures = 0
	b.buf = b.buf[:0]
	return nil
}
