// Package store provides the GORM-based durable store for Satchel.
// It owns all persisted state: one table per entity kind, the pending
// operation queue, detected conflicts, offline changes, and sync metadata.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/satchel-app/satchel/internal/models"
)

// Store wraps the GORM database connection with Satchel-specific operations.
type Store struct {
	*gorm.DB
	path string
}

// Config holds database configuration options.
type Config struct {
	Path        string
	Debug       bool
	MaxIdleConn int
	MaxOpenConn int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Debug:       false,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
	}
}

// New creates a new database connection and runs migrations. Open or
// migration failure is fatal to all subsequent operations; callers retry by
// calling New again.
func New(cfg Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	// DELETE journal mode for simpler transaction handling
	// (WAL mode has visibility issues with the pure-Go SQLite driver)
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	wrapped := &Store{DB: db, path: cfg.Path}

	if err := wrapped.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := wrapped.seedSyncMeta(); err != nil {
		return nil, fmt.Errorf("seed sync meta: %w", err)
	}

	return wrapped, nil
}

// migrate runs GORM auto-migrations for the auxiliary tables and one entity
// table per kind. Entity tables share the EntityRecord row shape.
func (s *Store) migrate() error {
	if err := s.AutoMigrate(
		&models.PendingOperation{},
		&models.Conflict{},
		&models.OfflineChange{},
		&models.SyncMeta{},
	); err != nil {
		return err
	}

	for _, kind := range models.AllKinds() {
		if err := s.Table(entityTable(kind)).AutoMigrate(&models.EntityRecord{}); err != nil {
			return fmt.Errorf("migrate %s: %w", kind, err)
		}
	}
	return nil
}

// seedSyncMeta inserts default sync metadata if not present. Values stay
// empty; the accessors apply the documented defaults on read.
func (s *Store) seedSyncMeta() error {
	defaults := []models.SyncMeta{
		{Key: models.SyncMetaLastSyncTime, Value: ""},
		{Key: models.SyncMetaLastFullSync, Value: ""},
		{Key: models.SyncMetaSyncState, Value: ""},
	}

	for _, meta := range defaults {
		result := s.Where("key = ?", meta.Key).FirstOrCreate(&meta)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// entityTable maps an entity kind to its table name. The prefix keeps
// kinds like "user" clear of reserved identifiers.
func entityTable(kind models.EntityKind) string {
	return "entity_" + string(kind)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction executes a function within a database transaction.
// The callback receives a *Store wrapper that uses the transaction.
func (s *Store) Transaction(fc func(tx *Store) error) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		wrappedTx := &Store{DB: tx, path: s.path}
		return fc(wrappedTx)
	})
}
