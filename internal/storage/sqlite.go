package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// documentRow is the one-row key-value table backing the SQLite store.
type documentRow struct {
	Key       string `gorm:"column:doc_key;primaryKey;size:64"`
	Body      []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "ledger_documents" }

// SQLite stores the ledger through gorm on a pure-Go SQLite driver.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens the database at dsn. A plain file path has its parent
// directory created; ":memory:" and "file:" DSNs are passed through.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn != ":memory:" && !isURI(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("NewSQLite: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("NewSQLite: open: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("NewSQLite: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func isURI(dsn string) bool {
	return strings.HasPrefix(dsn, "file:")
}

func (s *SQLite) Load(ctx context.Context) (*domain.LedgerDocument, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Where("doc_key = ?", DocumentKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("SQLite.Load: %w", err)
	}
	return decode(row.Body)
}

func (s *SQLite) Save(ctx context.Context, doc *domain.LedgerDocument) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	row := documentRow{Key: DocumentKey, Body: data, UpdatedAt: time.Now()}
	// Save upserts on the primary key.
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("SQLite.Save: %w", err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where("1 = 1").Delete(&documentRow{}).Error
	if err != nil {
		return fmt.Errorf("SQLite.Clear: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*SQLite)(nil)
