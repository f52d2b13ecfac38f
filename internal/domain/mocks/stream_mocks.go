package mocks

import (
	"context"
	"sync"

	"github.com/user/login-stream-processor/internal/domain"
)

// MockEventSource is a mock implementation of domain.EventSource for testing.
// Each FetchBatch call pops the next entry from Batches; FetchErrs (if set)
// is consumed in lockstep, a nil entry meaning no error for that call. An
// error paired with a batch models a cancellation arriving mid-poll.
type MockEventSource struct {
	mu          sync.Mutex
	Batches     [][]domain.Message
	FetchErrs   []error
	CommitErr   error
	CloseErr    error
	Acked       []domain.Message
	FetchCalls  int
	CommitCalls int
	Closed      bool
}

func (m *MockEventSource) FetchBatch(ctx context.Context, max int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.FetchCalls
	m.FetchCalls++

	var batch []domain.Message
	if call < len(m.Batches) {
		batch = m.Batches[call]
	}
	if call < len(m.FetchErrs) && m.FetchErrs[call] != nil {
		return batch, m.FetchErrs[call]
	}
	return batch, nil
}

func (m *MockEventSource) Ack(msg domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acked = append(m.Acked, msg)
}

func (m *MockEventSource) Commit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls++
	return m.CommitErr
}

func (m *MockEventSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseErr
}

// MockEventPublisher is a mock implementation of domain.EventPublisher.
type MockEventPublisher struct {
	mu          sync.Mutex
	Enriched    []domain.EnrichedEvent
	Snapshots   []domain.UsageSnapshot
	PublishErr  error
	SnapshotErr error
	FlushErr    error
	CloseErr    error
	FlushCalls  int
	Closed      bool
}

func (m *MockEventPublisher) PublishEnriched(ctx context.Context, event domain.EnrichedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Enriched = append(m.Enriched, event)
	return nil
}

func (m *MockEventPublisher) PublishSnapshot(ctx context.Context, snap domain.UsageSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SnapshotErr != nil {
		return m.SnapshotErr
	}
	m.Snapshots = append(m.Snapshots, snap)
	return nil
}

func (m *MockEventPublisher) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	return m.FlushErr
}

func (m *MockEventPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseErr
}
