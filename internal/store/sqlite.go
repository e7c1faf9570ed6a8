package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNilDatabase is returned when a SQLite store is built without a db.
var ErrNilDatabase = errors.New("store: database cannot be nil")

// kvRow is the single table backing SQLiteStore.
type kvRow struct {
	Key       string `gorm:"column:kv_key;primaryKey"`
	Value     string `gorm:"column:kv_value;not null"`
	UpdatedAt time.Time
}

func (kvRow) TableName() string { return "ledger_kv" }

// SQLiteStore implements Store on a local SQLite file through gorm. This is
// the device-local store used when no server database is configured.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared across calls.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return NewSQLiteStore(db)
}

// NewSQLiteStore wraps an existing gorm handle and migrates the schema.
func NewSQLiteStore(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row kvRow
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(row.Value), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if err := upsert(s.db.WithContext(ctx), key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&kvRow{}).Error; err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Commit(ctx context.Context, b *Batch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range b.Writes() {
			var err error
			if w.Value == nil {
				err = tx.Where("kv_key = ?", w.Key).Delete(&kvRow{}).Error
			} else {
				err = upsert(tx, w.Key, w.Value)
			}
			if err != nil {
				return fmt.Errorf("commit %s: %w", w.Key, err)
			}
		}
		return nil
	})
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsert(db *gorm.DB, key string, value []byte) error {
	row := kvRow{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"kv_value", "updated_at"}),
	}).Create(&row).Error
}
