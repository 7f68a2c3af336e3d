package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound, "fresh store must be empty")

	doc := domain.DefaultDocument()
	require.NoError(t, s.Save(ctx, &doc))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, *got)

	// Last write wins.
	doc.Info.Name = "Trần Thị B"
	doc.Transactions = append(doc.Transactions, domain.Transaction{ID: "x", Date: "05/10/2023", Description: "Bán hàng", Amount: 1000000})
	require.NoError(t, s.Save(ctx, &doc))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Trần Thị B", got.Info.Name)
	assert.Len(t, got.Transactions, 3)

	// Mutating the loaded copy must not leak into the store.
	got.Info.Name = "mutated"
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Trần Thị B", again.Info.Name)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing twice is fine.
	assert.NoError(t, s.Clear(ctx))

	assert.Error(t, s.Save(ctx, nil))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	runStoreContract(t, s)
	assert.Equal(t, 2, s.Saves())
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := NewBolt(path)
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	s, err := NewBolt(path)
	require.NoError(t, err)
	doc := domain.DefaultDocument()
	doc.Info.Period = "Quý 4/2023"
	require.NoError(t, s.Save(ctx, &doc))
	require.NoError(t, s.Close())

	s, err = NewBolt(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Quý 4/2023", got.Info.Period)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "ledger.sqlite"))
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := DialRedis(context.Background(), mr.Addr(), "", 0, "voiceledger:test")
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
	assert.False(t, mr.Exists("voiceledger:test"))
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), config.StorageConfig{Driver: "redis", RedisAddr: mr.Addr(), RedisKey: "ledger"})
	require.NoError(t, err)
	defer s.Close()

	doc := domain.DefaultDocument()
	require.NoError(t, s.Save(context.Background(), &doc))
	assert.True(t, mr.Exists("ledger"))
}

func TestLoad_CorruptDocument(t *testing.T) {
	s := NewMemory()
	s.data = []byte("{not json")

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.StorageConfig{Driver: "bolt", Path: filepath.Join(t.TempDir(), "l.db")})
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Driver: "floppy"})
	assert.Error(t, err)
}
