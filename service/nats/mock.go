package nats

import (
	"context"
	"sync"
)

// MockPublisher records published events in memory for tests.
type MockPublisher struct {
	mu           sync.RWMutex
	published    []*Event
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the event and returns any configured error.
func (m *MockPublisher) Publish(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of all published events.
func (m *MockPublisher) Events() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*Event, len(m.published))
	copy(events, m.published)
	return events
}

// EventsForTipJar returns events published for a specific tip jar.
func (m *MockPublisher) EventsForTipJar(address string) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*Event
	for _, e := range m.published {
		if e.TipJar == address {
			events = append(events, e)
		}
	}
	return events
}

// SetPublishError configures the mock to fail every Publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
