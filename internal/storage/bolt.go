package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "ledger"

// Bolt stores the ledger in a local bbolt file. It is the default backend:
// a single-file, crash-safe key-value store with no server to run.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (creating if needed) the bbolt file at path.
func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("NewBolt: create data dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("NewBolt: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("NewBolt: create bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Load(ctx context.Context) (*domain.LedgerDocument, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(DocumentKey))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (b *Bolt) Save(ctx context.Context, doc *domain.LedgerDocument) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(DocumentKey), data)
	})
}

func (b *Bolt) Clear(ctx context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(DocumentKey))
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

var _ Store = (*Bolt)(nil)
