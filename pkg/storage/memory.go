package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/sguter90/weatherlog/pkg/models"
)

// MemoryLog is a concurrency-safe in-memory ReadingLog. It is lost on restart.
type MemoryLog struct {
	mu sync.RWMutex

	readings []models.RawReading

	// maxEntries bounds the log; the oldest readings are dropped first
	maxEntries int
}

// NewMemoryLog creates an in-memory log. If maxEntries is <= 0, it is treated
// as unlimited.
func NewMemoryLog(maxEntries int) *MemoryLog {
	return &MemoryLog{maxEntries: maxEntries}
}

// Append inserts the reading after every reading with ts <= the new one.
func (m *MemoryLog) Append(ctx context.Context, ts int64, fields models.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := models.RawReading{CapturedAt: ts, Fields: fields.Clone()}
	if r.Fields == nil {
		r.Fields = models.Fields{}
	}

	i := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].CapturedAt > ts
	})
	m.readings = append(m.readings, models.RawReading{})
	copy(m.readings[i+1:], m.readings[i:])
	m.readings[i] = r

	if m.maxEntries > 0 && len(m.readings) > m.maxEntries {
		over := len(m.readings) - m.maxEntries
		m.readings = append([]models.RawReading(nil), m.readings[over:]...)
	}

	return nil
}

func (m *MemoryLog) QueryRange(ctx context.Context, since, until int64) ([]models.RawReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	lo := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].CapturedAt >= since
	})
	hi := sort.Search(len(m.readings), func(i int) bool {
		return m.readings[i].CapturedAt >= until
	})
	if hi <= lo {
		return []models.RawReading{}, nil
	}

	out := make([]models.RawReading, 0, hi-lo)
	for _, r := range m.readings[lo:hi] {
		out = append(out, models.RawReading{CapturedAt: r.CapturedAt, Fields: r.Fields.Clone()})
	}
	return out, nil
}

func (m *MemoryLog) Latest(ctx context.Context) (models.RawReading, error) {
	if err := ctx.Err(); err != nil {
		return models.RawReading{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.readings) == 0 {
		return models.RawReading{}, ErrNotFound
	}
	last := m.readings[len(m.readings)-1]
	return models.RawReading{CapturedAt: last.CapturedAt, Fields: last.Fields.Clone()}, nil
}

// Len returns the number of stored readings
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readings)
}

func (m *MemoryLog) Close() error {
	return nil
}
