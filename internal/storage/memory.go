package storage

import (
	"context"
	"sync"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// Memory is an in-process Store. It keeps the encoded form so callers can
// never mutate what was saved.
// Data is lost on exit; it backs tests and --ephemeral runs.
type Memory struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (*domain.LedgerDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, ErrNotFound
	}
	return decode(m.data)
}

func (m *Memory) Save(ctx context.Context, doc *domain.LedgerDocument) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Saves reports how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

var _ Store = (*Memory)(nil)
