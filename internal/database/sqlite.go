package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/openmerit/registry-api/internal/audit"
	"github.com/openmerit/registry-api/internal/records"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes the shared SQLite connection and performs schema
// migrations. The handle is constructed once in main and injected into every
// component; there is no process-global connection state.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// TranslateError surfaces localId uniqueness violations as
	// gorm.ErrDuplicatedKey, which ingestion maps to a conflict.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&records.Record{}, &audit.Entry{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
