package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/openmerit/registry-api/internal/audit"
	"gorm.io/gorm"
)

const testAdminPassword = "super-secret"

var testNow = time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)

type staticIDGenerator struct {
	prefix string
	next   int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type failingTrail struct{}

func (failingTrail) Append(ctx context.Context, entry audit.Entry) error {
	return errors.New("trail unavailable")
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:registry_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}, &audit.Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := newTestDatabase(t)
	clock := func() time.Time { return testNow }

	trail, err := audit.NewTrail(db, clock)
	if err != nil {
		t.Fatalf("failed to construct audit trail: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:      db,
		Audit:         trail,
		Clock:         clock,
		IDProvider:    &staticIDGenerator{prefix: "srv"},
		AdminPassword: testAdminPassword,
	})
	if err != nil {
		t.Fatalf("failed to construct records service: %v", err)
	}

	return service, db
}

func seedRecord(t *testing.T, db *gorm.DB, record Record) Record {
	t.Helper()

	if record.ServerID == "" {
		record.ServerID = fmt.Sprintf("seed-%d", time.Now().UnixNano())
	}
	if record.SyncStatus == "" {
		record.SyncStatus = SyncStatusSynced
	}
	if record.SubmittedAtSeconds == 0 {
		record.SubmittedAtSeconds = testNow.Unix()
	}
	if record.CreatedAtSeconds == 0 {
		record.CreatedAtSeconds = record.SubmittedAtSeconds
	}
	if record.UpdatedAtSeconds == 0 {
		record.UpdatedAtSeconds = record.SubmittedAtSeconds
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	return record
}

func recordCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&Record{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	return count
}

func auditEntries(t *testing.T, db *gorm.DB, entryType string) []audit.Entry {
	t.Helper()

	var entries []audit.Entry
	if err := db.Where("type = ?", entryType).Order("id ASC").Find(&entries).Error; err != nil {
		t.Fatalf("failed to load audit entries: %v", err)
	}
	return entries
}

func mustKind(t *testing.T, err error, kind Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}

func stringPtr(value string) *string {
	return &value
}

func intToString(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}
