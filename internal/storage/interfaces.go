// Package storage persists the single ledger document of an installation.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("ledger document not found")

// DocumentKey is the one key every backend stores the ledger under.
const DocumentKey = "ledger"

// Store is a durable key-value holder for exactly one LedgerDocument.
// Save has last-write-wins semantics.
type Store interface {
	// Load returns the stored document or ErrNotFound.
	Load(ctx context.Context) (*domain.LedgerDocument, error)

	// Save replaces the stored document.
	Save(ctx context.Context, doc *domain.LedgerDocument) error

	// Clear removes all stored state. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

func encode(doc *domain.LedgerDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("encode: nil document")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.LedgerDocument, error) {
	var doc domain.LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &doc, nil
}
