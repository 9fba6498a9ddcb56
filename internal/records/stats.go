package records

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const dailyStatsWindow = 30 * 24 * time.Hour

// OverallStats summarizes the full record set.
type OverallStats struct {
	TotalCount     int64
	TotalAmountTWD float64
	TotalAmountRMB float64
	AvgAmountTWD   float64
	AvgAmountRMB   float64
}

// GroupStats is one grouped row (per project or per payment status).
type GroupStats struct {
	Key       string  `gorm:"column:group_key"`
	Count     int64   `gorm:"column:count"`
	AmountTWD float64 `gorm:"column:amount_twd"`
	AmountRMB float64 `gorm:"column:amount_rmb"`
}

// DailyStats is one trailing-window day, keyed by UTC calendar date.
type DailyStats struct {
	Date      string  `gorm:"column:date"`
	Count     int64   `gorm:"column:count"`
	AmountTWD float64 `gorm:"column:amount_twd"`
	AmountRMB float64 `gorm:"column:amount_rmb"`
}

// StatsResult carries the four independent statistics views.
type StatsResult struct {
	Overall   OverallStats
	ByProject []GroupStats
	ByPayment []GroupStats
	Daily     []DailyStats
}

const groupSums = "COUNT(*) AS count, COALESCE(SUM(amount_twd), 0) AS amount_twd, COALESCE(SUM(amount_rmb), 0) AS amount_rmb"

// Stats computes the overall, per-project, per-payment and trailing-30-day
// views. The four reads run concurrently and each may reflect a slightly
// different snapshot under concurrent writes.
func (s *Service) Stats(ctx context.Context) (StatsResult, error) {
	var result StatsResult

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var row struct {
			Count     int64   `gorm:"column:count"`
			AmountTWD float64 `gorm:"column:amount_twd"`
			AmountRMB float64 `gorm:"column:amount_rmb"`
		}
		err := s.db.WithContext(groupCtx).Model(&Record{}).
			Select(groupSums).
			Scan(&row).Error
		if err != nil {
			return err
		}
		result.Overall = OverallStats{
			TotalCount:     row.Count,
			TotalAmountTWD: row.AmountTWD,
			TotalAmountRMB: row.AmountRMB,
		}
		if row.Count > 0 {
			result.Overall.AvgAmountTWD = row.AmountTWD / float64(row.Count)
			result.Overall.AvgAmountRMB = row.AmountRMB / float64(row.Count)
		}
		return nil
	})

	group.Go(func() error {
		return s.db.WithContext(groupCtx).Model(&Record{}).
			Select("project AS group_key, " + groupSums).
			Group("project").
			Order("count DESC").
			Scan(&result.ByProject).Error
	})

	group.Go(func() error {
		return s.db.WithContext(groupCtx).Model(&Record{}).
			Select("payment AS group_key, " + groupSums).
			Group("payment").
			Scan(&result.ByPayment).Error
	})

	group.Go(func() error {
		cutoff := s.clock().UTC().Add(-dailyStatsWindow).Unix()
		return s.db.WithContext(groupCtx).Model(&Record{}).
			Select("strftime('%Y-%m-%d', submitted_at_s, 'unixepoch') AS date, " + groupSums).
			Where("submitted_at_s >= ?", cutoff).
			Group("date").
			Order("date ASC").
			Scan(&result.Daily).Error
	})

	if err := group.Wait(); err != nil {
		s.logError(opStats, "query_failed", err)
		return StatsResult{}, newError(KindStore, opStats, "query_failed", err)
	}

	return result, nil
}
