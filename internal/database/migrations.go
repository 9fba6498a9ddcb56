package database

import (
	"errors"
	"time"

	"github.com/openmerit/registry-api/internal/records"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillSyncStatus = "2026-07-18_backfill_record_sync_status"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillSyncStatus, apply: backfillRecordSyncStatus},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillRecordSyncStatus stamps rows imported before the sync marker
// existed.
func backfillRecordSyncStatus(db *gorm.DB) error {
	return db.Model(&records.Record{}).
		Where("sync_status = ''").
		Update("sync_status", records.SyncStatusSynced).Error
}
