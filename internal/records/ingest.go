package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/openmerit/registry-api/internal/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultDeviceID = "unknown"

var (
	errMissingItems = errors.New("items are required")
	errEmptyItems   = errors.New("items must not be empty")
)

// IngestRequest describes one batch submission.
type IngestRequest struct {
	BatchID    string
	DeviceID   string
	CallerAddr string
	Items      []RawItem
}

// IngestResult reports a successful batch write.
type IngestResult struct {
	SubmittedCount int
	BatchID        string
}

// Ingest normalizes the batch, writes it as one bulk insert and appends a
// submit audit entry. A localId collision fails the whole batch; nothing from
// it is committed.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.Items == nil {
		return IngestResult{}, newError(KindValidation, opIngest, "missing_items", errMissingItems)
	}
	if len(req.Items) == 0 {
		return IngestResult{}, newError(KindValidation, opIngest, "empty_items", errEmptyItems)
	}

	now := s.clock().UTC()
	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		batchID = fmt.Sprintf("batch_%d", now.UnixMilli())
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		deviceID = defaultDeviceID
	}

	rows := make([]Record, 0, len(req.Items))
	for _, item := range req.Items {
		serverID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opIngest, "id_generation_failed", err, zap.String("batch_id", batchID))
			return IngestResult{}, newError(KindStore, opIngest, "id_generation_failed", err)
		}

		rows = append(rows, Record{
			LocalID:            normalizeLocalID(item.LocalID),
			ServerID:           serverID,
			Name:               item.Name,
			Project:            item.Project,
			Method:             item.Method,
			Content:            item.Content,
			Contact:            item.Contact,
			Payment:            item.Payment,
			AmountTWD:          coerceAmount(item.AmountTWD),
			AmountRMB:          coerceAmount(item.AmountRMB),
			BatchID:            batchID,
			DeviceID:           deviceID,
			SubmittedAtSeconds: now.Unix(),
			CreatedAtSeconds:   now.Unix(),
			UpdatedAtSeconds:   now.Unix(),
			SyncStatus:         SyncStatusSynced,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		s.logError(opIngest, "insert_failed", err,
			zap.String("batch_id", batchID),
			zap.Int("item_count", len(rows)))
		s.appendAudit(ctx, audit.Entry{
			Type:       audit.EntryTypeSubmitError,
			BatchID:    batchID,
			DeviceID:   deviceID,
			Count:      int64(len(rows)),
			CallerAddr: req.CallerAddr,
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return IngestResult{}, newError(KindConflict, opIngest, "duplicate_local_id", err)
		}
		return IngestResult{}, newError(KindStore, opIngest, "insert_failed", err)
	}

	s.appendAudit(ctx, audit.Entry{
		Type:       audit.EntryTypeSubmit,
		BatchID:    batchID,
		DeviceID:   deviceID,
		Count:      int64(len(rows)),
		CallerAddr: req.CallerAddr,
	})

	return IngestResult{SubmittedCount: len(rows), BatchID: batchID}, nil
}

func normalizeLocalID(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// coerceAmount converts a client amount value to a non-negative float64.
// Strings are parsed; anything malformed or absent becomes 0 without error.
// Lenient on purpose, pending product input on intended strictness.
func coerceAmount(value any) float64 {
	var amount float64
	switch v := value.(type) {
	case float64:
		amount = v
	case float32:
		amount = float64(v)
	case int:
		amount = float64(v)
	case int64:
		amount = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		amount = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		amount = parsed
	default:
		return 0
	}

	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0
	}
	return amount
}
