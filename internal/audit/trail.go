// Package audit persists a write-only trail of mutating operations. Entries
// are appended once per request and never read back or deleted by the service.
package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Entry types for the operations the trail records.
const (
	EntryTypeSubmit      = "submit"
	EntryTypeSubmitError = "submit-error"
	EntryTypeDelete      = "delete"
)

var errMissingDatabase = errors.New("database handle is required")

// Entry is one appended audit record.
type Entry struct {
	ID              uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Type            string `gorm:"column:type;size:32;not null"`
	BatchID         string `gorm:"column:batch_id;size:190;not null;default:''"`
	DeviceID        string `gorm:"column:device_id;size:190;not null;default:''"`
	TargetID        string `gorm:"column:target_id;size:190;not null;default:''"`
	Count           int64  `gorm:"column:count;not null;default:0"`
	CallerAddr      string `gorm:"column:caller_addr;size:64;not null;default:''"`
	LoggedAtSeconds int64  `gorm:"column:logged_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "audit_logs"
}

// Trail appends entries to the audit log collection.
type Trail struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewTrail constructs a Trail over the shared database handle.
func NewTrail(db *gorm.DB, clock func() time.Time) (*Trail, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if clock == nil {
		clock = time.Now
	}
	return &Trail{db: db, clock: clock}, nil
}

// Append stamps the entry with the current instant and inserts it. Callers on
// mutating paths treat a returned error as best-effort and swallow it.
func (t *Trail) Append(ctx context.Context, entry Entry) error {
	entry.LoggedAtSeconds = t.clock().UTC().Unix()
	return t.db.WithContext(ctx).Create(&entry).Error
}
