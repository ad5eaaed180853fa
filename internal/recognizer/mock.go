package recognizer

import (
	"context"
	"sync"

	"github.com/loqalabs/loqa-caption/internal/protocol"
)

// Mock is a hand-driven capability for tests and demo runs.
type Mock struct {
	mu       sync.Mutex
	handlers Handlers
	started  bool
	starts   int
	stops    int
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Bind(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

func (m *Mock) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.starts++
	return nil
}

func (m *Mock) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

// EmitResult delivers a transcript event to the bound handler.
func (m *Mock) EmitResult(ev protocol.TranscriptEvent) {
	m.mu.Lock()
	h := m.handlers.OnResult
	m.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// EmitEnd delivers the end-of-session signal.
func (m *Mock) EmitEnd() {
	m.mu.Lock()
	m.started = false
	h := m.handlers.OnEnd
	m.mu.Unlock()
	if h != nil {
		h()
	}
}

// EmitError delivers a recognizer error code.
func (m *Mock) EmitError(code string) {
	m.mu.Lock()
	m.started = false
	h := m.handlers.OnError
	m.mu.Unlock()
	if h != nil {
		h(code)
	}
}

func (m *Mock) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Mock) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
