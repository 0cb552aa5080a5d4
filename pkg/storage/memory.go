package storage

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrWriteFailed is what Memory returns from writes while FailWrites is set.
var ErrWriteFailed = errors.New("storage: write failed")

// Memory is an in-process store. It is the backend used by tests and by the
// "memory" configuration, where a restart loses everything.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	failW  bool
	writes int
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failW {
		return ErrWriteFailed
	}
	m.data[key] = slices.Clone(value)
	m.writes++
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failW {
		return ErrWriteFailed
	}
	delete(m.data, key)
	m.writes++
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// FailWrites makes every subsequent Set and Remove fail, simulating a full
// or unavailable store.
func (m *Memory) FailWrites(fail bool) {
	m.mu.Lock()
	m.failW = fail
	m.mu.Unlock()
}

// Writes is the number of successful Set and Remove calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
