package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 50
)

// sortColumns whitelists client sort keys against store columns. Unknown keys
// fall back to the submission instant.
var sortColumns = map[string]string{
	"submittedAt": "submitted_at_s",
	"createdAt":   "created_at_s",
	"updatedAt":   "updated_at_s",
	"name":        "name",
	"project":     "project",
	"payment":     "payment",
	"amountTWD":   "amount_twd",
	"amountRMB":   "amount_rmb",
}

// ListQuery carries the optional listing filters. Date bounds are inclusive
// on the submission instant; either may be supplied alone.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
	Search    string
	Project   string
	Payment   string
	StartAt   *time.Time
	EndAt     *time.Time
}

// FilteredTotals aggregates the entire filtered set, not just the returned page.
type FilteredTotals struct {
	Count     int64
	AmountTWD float64
	AmountRMB float64
}

// ListResult is one page of records plus pagination metadata and the
// filtered-set aggregate computed over the same predicate.
type ListResult struct {
	Records    []Record
	Page       int
	Limit      int
	TotalCount int64
	TotalPages int64
	Totals     FilteredTotals
}

// List runs the paginated read and the filtered-set aggregate concurrently
// against the identical predicate. The two reads are independent; under
// concurrent writes they may observe slightly different snapshots.
func (s *Service) List(ctx context.Context, query ListQuery) (ListResult, error) {
	page := query.Page
	if page <= 0 {
		page = defaultPage
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = sortColumns["submittedAt"]
	}
	direction := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		direction = "ASC"
	}
	// Secondary id sort keeps pagination stable across equal sort keys.
	order := fmt.Sprintf("%s %s, id %s", column, direction, direction)

	var (
		pageRecords []Record
		totals      FilteredTotals
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.filteredQuery(groupCtx, query).
			Order(order).
			Limit(limit).
			Offset((page - 1) * limit).
			Find(&pageRecords).Error
	})
	group.Go(func() error {
		var row struct {
			Count     int64   `gorm:"column:count"`
			AmountTWD float64 `gorm:"column:amount_twd"`
			AmountRMB float64 `gorm:"column:amount_rmb"`
		}
		err := s.filteredQuery(groupCtx, query).
			Select("COUNT(*) AS count, COALESCE(SUM(amount_twd), 0) AS amount_twd, COALESCE(SUM(amount_rmb), 0) AS amount_rmb").
			Scan(&row).Error
		if err != nil {
			return err
		}
		totals = FilteredTotals{Count: row.Count, AmountTWD: row.AmountTWD, AmountRMB: row.AmountRMB}
		return nil
	})
	if err := group.Wait(); err != nil {
		s.logError(opList, "query_failed", err,
			zap.String("sort_by", query.SortBy),
			zap.Int("page", page))
		return ListResult{}, newError(KindStore, opList, "query_failed", err)
	}

	totalPages := (totals.Count + int64(limit) - 1) / int64(limit)

	return ListResult{
		Records:    pageRecords,
		Page:       page,
		Limit:      limit,
		TotalCount: totals.Count,
		TotalPages: totalPages,
		Totals:     totals,
	}, nil
}

// filteredQuery builds the shared predicate used by both the page read and
// the aggregate.
func (s *Service) filteredQuery(ctx context.Context, query ListQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&Record{})

	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		tx = tx.Where(
			"LOWER(name) LIKE ? OR LOWER(contact) LIKE ? OR LOWER(content) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if query.Project != "" {
		tx = tx.Where("project = ?", query.Project)
	}
	if query.Payment != "" {
		tx = tx.Where("payment = ?", query.Payment)
	}
	if query.StartAt != nil {
		tx = tx.Where("submitted_at_s >= ?", query.StartAt.Unix())
	}
	if query.EndAt != nil {
		tx = tx.Where("submitted_at_s <= ?", query.EndAt.Unix())
	}

	return tx
}
