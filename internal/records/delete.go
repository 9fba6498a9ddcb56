package records

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/openmerit/registry-api/internal/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	deleteTargetBatch = "batch"
	deleteTargetAll   = "all"
)

var errAdminPasswordMismatch = errors.New("admin password mismatch")

// DeleteRequest selects one of the three deletion modes: by batch, all
// records, or a single record matched by one of its identifier fields.
type DeleteRequest struct {
	Target        string
	BatchID       string
	AdminPassword string
	CallerAddr    string
}

// DeleteResult reports how many records were removed. Zero is a valid
// outcome; deleting a nonexistent target is not a failure.
type DeleteResult struct {
	DeletedCount int64
}

// identifierStrategy is one way of resolving a single-record delete target.
// Strategies are tried in order; the first that removes a row wins.
type identifierStrategy struct {
	name  string
	apply func(tx *gorm.DB, target string) (*gorm.DB, bool)
}

var identifierStrategies = []identifierStrategy{
	{
		name: "store_id",
		apply: func(tx *gorm.DB, target string) (*gorm.DB, bool) {
			id, err := strconv.ParseUint(target, 10, 64)
			if err != nil {
				return nil, false
			}
			return tx.Where("id = ?", id), true
		},
	},
	{
		name: "local_id",
		apply: func(tx *gorm.DB, target string) (*gorm.DB, bool) {
			return tx.Where("local_id = ?", target), true
		},
	},
	{
		name: "server_id",
		apply: func(tx *gorm.DB, target string) (*gorm.DB, bool) {
			return tx.Where("server_id = ?", target), true
		},
	},
}

// Delete authorizes the caller and executes one deletion mode, first match
// wins: "batch" with a batch id, "all", otherwise a single-record lookup.
// The outcome is always recorded on the audit trail.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	if req.AdminPassword != s.adminPassword {
		s.logError(opDelete, "admin_password_mismatch", nil, zap.String("target", req.Target))
		return DeleteResult{}, newError(KindAuth, opDelete, "admin_password_mismatch", errAdminPasswordMismatch)
	}

	target := strings.TrimSpace(req.Target)
	batchID := strings.TrimSpace(req.BatchID)

	var (
		deleted int64
		err     error
	)
	switch {
	case target == deleteTargetBatch && batchID != "":
		deleted, err = s.deleteByBatch(ctx, batchID)
	case target == deleteTargetAll:
		deleted, err = s.deleteAll(ctx)
	default:
		deleted, err = s.deleteByIdentifier(ctx, target)
	}

	s.appendAudit(ctx, audit.Entry{
		Type:       audit.EntryTypeDelete,
		BatchID:    batchID,
		TargetID:   target,
		Count:      deleted,
		CallerAddr: req.CallerAddr,
	})

	if err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("target", target))
		return DeleteResult{}, newError(KindStore, opDelete, "delete_failed", err)
	}

	return DeleteResult{DeletedCount: deleted}, nil
}

func (s *Service) deleteByBatch(ctx context.Context, batchID string) (int64, error) {
	result := s.db.WithContext(ctx).Where("batch_id = ?", batchID).Delete(&Record{})
	return result.RowsAffected, result.Error
}

func (s *Service) deleteAll(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Record{})
	return result.RowsAffected, result.Error
}

func (s *Service) deleteByIdentifier(ctx context.Context, target string) (int64, error) {
	for _, strategy := range identifierStrategies {
		tx, ok := strategy.apply(s.db.WithContext(ctx), target)
		if !ok {
			continue
		}
		result := tx.Delete(&Record{})
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected > 0 {
			return result.RowsAffected, nil
		}
	}
	return 0, nil
}
