package numerator

import (
	"context"
	"sync"
	"sync/atomic"

	corenumerator "docledger/internal/core/numerator"
)

// MemorySequence keeps one atomic counter per key.
// Used by the in-process store and tests; the strategy option is ignored
// because every increment is already a single atomic operation.
type MemorySequence struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

var _ corenumerator.Sequence = (*MemorySequence)(nil)

// NewMemorySequence creates an empty in-memory sequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[string]*atomic.Int64)}
}

func (m *MemorySequence) counter(key string) *atomic.Int64 {
	m.mu.RLock()
	c, ok := m.counters[key]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.counters[key]; !ok {
		c = new(atomic.Int64)
		m.counters[key] = c
	}
	return c
}

// NextValue implements Sequence.
func (m *MemorySequence) NextValue(_ context.Context, key string, _ *corenumerator.Options) (int64, error) {
	return m.counter(key).Add(1), nil
}

// SetValue implements Sequence.
func (m *MemorySequence) SetValue(_ context.Context, key string, value int64) error {
	m.counter(key).Store(value)
	return nil
}
