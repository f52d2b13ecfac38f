package domain

import "context"

// Message is a single raw record read from the input stream, together with
// the position needed to commit it.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// EventSource abstracts the partitioned input stream the processing loop
// consumes from (e.g. a Kafka consumer group reader).
type EventSource interface {
	// FetchBatch returns at most max messages, waiting up to the source's
	// poll timeout for the first one. An empty batch is not an error. A
	// cancellation may arrive with records already fetched; those are
	// returned alongside the context error so the caller can finish them.
	FetchBatch(ctx context.Context, max int) ([]Message, error)

	// Ack marks one fetched message as processed, making its offset
	// eligible for the next Commit. Fetched-but-unacked messages are never
	// committed and will be redelivered.
	Ack(msg Message)

	// Commit acknowledges every message acked so far.
	Commit(ctx context.Context) error

	// Close releases the underlying stream handle.
	Close() error
}

// EventPublisher abstracts the two output streams. Publish calls buffer and
// must not block on broker acknowledgment; Flush forces delivery.
type EventPublisher interface {
	PublishEnriched(ctx context.Context, event EnrichedEvent) error
	PublishSnapshot(ctx context.Context, snap UsageSnapshot) error

	// Flush blocks until buffered messages are delivered or ctx expires.
	Flush(ctx context.Context) error

	// Close flushes remaining messages and releases the stream handles.
	Close() error
}
