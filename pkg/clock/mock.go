package clock

import (
	"sync"
	"time"
)

// Mock is a manipulable clock for tests
type Mock interface {
	Clock

	// Set moves the clock to t
	Set(t time.Time)

	// Add moves the clock forward by d
	Add(d time.Duration)
}

// NewMock creates a mock clock starting at t
func NewMock(t time.Time) Mock {
	return &mockClock{now: t}
}

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

func (m *mockClock) Add(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
