package utils

import (
	"errors"
	"sync"
)

// ErrMockClosed is returned by MockTransport.Send after Close.
var ErrMockClosed = errors.New("mock transport closed")

// MockTransport implements the Transport interface for testing. It records
// every value sent and is safe for concurrent use.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool

	// Err, when set, is returned by Send after recording the value.
	Err error
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMockClosed
	}
	m.sent = append(m.sent, data)
	return m.Err
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Last returns the most recent value, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
