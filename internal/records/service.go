package records

import (
	"context"
	"errors"
	"time"

	"github.com/openmerit/registry-api/internal/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase      = errors.New("database handle is required")
	errMissingIDProvider    = errors.New("id provider is required")
	errMissingAdminPassword = errors.New("admin password is required")
	noOpLogger              = zap.NewNop()
)

const (
	opServiceNew = "records.service.new"
	opIngest     = "records.ingest"
	opList       = "records.list"
	opStats      = "records.stats"
	opDelete     = "records.delete"
	opExport     = "records.export"
)

// AuditTrail appends audit entries for mutating operations. Append failures
// are logged and swallowed; the trail and the data can diverge.
type AuditTrail interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// ServiceConfig carries the dependencies for a records Service.
type ServiceConfig struct {
	Database      *gorm.DB
	Audit         AuditTrail
	Clock         func() time.Time
	IDProvider    IDProvider
	AdminPassword string
	Logger        *zap.Logger
}

// IDProvider issues server-side record identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// Service implements record ingestion, querying, aggregation, deletion and
// CSV export over the shared record store.
type Service struct {
	db            *gorm.DB
	audit         AuditTrail
	clock         func() time.Time
	idProvider    IDProvider
	adminPassword string
	logger        *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newError(KindStore, opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newError(KindStore, opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.AdminPassword == "" {
		return nil, newError(KindStore, opServiceNew, "missing_admin_password", errMissingAdminPassword)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:            cfg.Database,
		audit:         cfg.Audit,
		clock:         clock,
		idProvider:    cfg.IDProvider,
		adminPassword: cfg.AdminPassword,
		logger:        logger,
	}, nil
}

// appendAudit writes an audit entry, logging and discarding any failure.
func (s *Service) appendAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.loggerOrDefault().Warn("audit append failed",
			zap.String("entry_type", entry.Type),
			zap.String("batch_id", entry.BatchID),
			zap.String("target_id", entry.TargetID),
			zap.Error(err))
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("records service error", attrs...)
}
