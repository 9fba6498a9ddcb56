package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmerit/registry-api/internal/records"
	"go.uber.org/zap"
)

type submitItemPayload struct {
	LocalID   string `json:"localId"`
	Name      string `json:"name"`
	Project   string `json:"project"`
	Method    string `json:"method"`
	Content   string `json:"content"`
	Contact   string `json:"contact"`
	Payment   string `json:"payment"`
	AmountTWD any    `json:"amountTWD"`
	AmountRMB any    `json:"amountRMB"`
}

type submitRequestPayload struct {
	Data     []submitItemPayload `json:"data"`
	BatchID  string              `json:"batchId"`
	DeviceID string              `json:"deviceId"`
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "request body must carry a data array")
		return
	}

	var items []records.RawItem
	if request.Data != nil {
		items = make([]records.RawItem, 0, len(request.Data))
		for _, item := range request.Data {
			items = append(items, records.RawItem{
				LocalID:   item.LocalID,
				Name:      item.Name,
				Project:   item.Project,
				Method:    item.Method,
				Content:   item.Content,
				Contact:   item.Contact,
				Payment:   item.Payment,
				AmountTWD: item.AmountTWD,
				AmountRMB: item.AmountRMB,
			})
		}
	}

	result, err := h.records.Ingest(c.Request.Context(), records.IngestRequest{
		BatchID:    request.BatchID,
		DeviceID:   request.DeviceID,
		CallerAddr: c.ClientIP(),
		Items:      items,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondData(c, gin.H{
		"submittedCount": result.SubmittedCount,
		"batchId":        result.BatchID,
	})
}

type recordPayload struct {
	ID          uint    `json:"id"`
	LocalID     string  `json:"localId,omitempty"`
	ServerID    string  `json:"serverId"`
	Name        string  `json:"name"`
	Project     string  `json:"project"`
	Method      string  `json:"method"`
	Content     string  `json:"content"`
	Contact     string  `json:"contact"`
	Payment     string  `json:"payment"`
	AmountTWD   float64 `json:"amountTWD"`
	AmountRMB   float64 `json:"amountRMB"`
	BatchID     string  `json:"batchId"`
	DeviceID    string  `json:"deviceId"`
	SubmittedAt string  `json:"submittedAt"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	SyncStatus  string  `json:"syncStatus"`
}

func toRecordPayload(record records.Record) recordPayload {
	payload := recordPayload{
		ID:          record.ID,
		ServerID:    record.ServerID,
		Name:        record.Name,
		Project:     record.Project,
		Method:      record.Method,
		Content:     record.Content,
		Contact:     record.Contact,
		Payment:     record.Payment,
		AmountTWD:   record.AmountTWD,
		AmountRMB:   record.AmountRMB,
		BatchID:     record.BatchID,
		DeviceID:    record.DeviceID,
		SubmittedAt: formatInstant(record.SubmittedAtSeconds),
		CreatedAt:   formatInstant(record.CreatedAtSeconds),
		UpdatedAt:   formatInstant(record.UpdatedAtSeconds),
		SyncStatus:  record.SyncStatus,
	}
	if record.LocalID != nil {
		payload.LocalID = *record.LocalID
	}
	return payload
}

func formatInstant(unixSeconds int64) string {
	if unixSeconds <= 0 {
		return ""
	}
	return time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
}

func (h *httpHandler) handleList(c *gin.Context) {
	query := records.ListQuery{
		SortBy:    c.DefaultQuery("sortBy", "submittedAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
		Search:    c.Query("search"),
		Project:   c.Query("project"),
		Payment:   c.Query("payment"),
	}
	query.Page, _ = strconv.Atoi(c.Query("page"))
	query.Limit, _ = strconv.Atoi(c.Query("limit"))

	startAt, err := parseDateBound(c.Query("startDate"), false)
	if err != nil {
		respondInvalidRequest(c, "startDate must be YYYY-MM-DD or RFC3339")
		return
	}
	endAt, err := parseDateBound(c.Query("endDate"), true)
	if err != nil {
		respondInvalidRequest(c, "endDate must be YYYY-MM-DD or RFC3339")
		return
	}
	query.StartAt = startAt
	query.EndAt = endAt

	result, err := h.records.List(c.Request.Context(), query)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	page := make([]recordPayload, 0, len(result.Records))
	for _, record := range result.Records {
		page = append(page, toRecordPayload(record))
	}

	respondData(c, gin.H{
		"records": page,
		"pagination": gin.H{
			"page":       result.Page,
			"limit":      result.Limit,
			"totalCount": result.TotalCount,
			"totalPages": result.TotalPages,
		},
		"totals": gin.H{
			"count":     result.Totals.Count,
			"amountTWD": result.Totals.AmountTWD,
			"amountRMB": result.Totals.AmountRMB,
		},
	})
}

// parseDateBound accepts a bare date or an RFC3339 instant. A bare end date
// is extended to the last second of that day so the bound stays inclusive.
func parseDateBound(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.ParseInLocation("2006-01-02", value, time.UTC); err == nil {
		if endOfDay {
			parsed = parsed.Add(24*time.Hour - time.Second)
		}
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (h *httpHandler) handleStats(c *gin.Context) {
	result, err := h.records.Stats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	byProject := make([]gin.H, 0, len(result.ByProject))
	for _, group := range result.ByProject {
		byProject = append(byProject, gin.H{
			"project":   group.Key,
			"count":     group.Count,
			"amountTWD": group.AmountTWD,
			"amountRMB": group.AmountRMB,
		})
	}
	byPayment := make([]gin.H, 0, len(result.ByPayment))
	for _, group := range result.ByPayment {
		byPayment = append(byPayment, gin.H{
			"payment":   group.Key,
			"count":     group.Count,
			"amountTWD": group.AmountTWD,
			"amountRMB": group.AmountRMB,
		})
	}
	daily := make([]gin.H, 0, len(result.Daily))
	for _, day := range result.Daily {
		daily = append(daily, gin.H{
			"date":      day.Date,
			"count":     day.Count,
			"amountTWD": day.AmountTWD,
			"amountRMB": day.AmountRMB,
		})
	}

	respondData(c, gin.H{
		"overall": gin.H{
			"totalCount":     result.Overall.TotalCount,
			"totalAmountTWD": result.Overall.TotalAmountTWD,
			"totalAmountRMB": result.Overall.TotalAmountRMB,
			"avgAmountTWD":   result.Overall.AvgAmountTWD,
			"avgAmountRMB":   result.Overall.AvgAmountRMB,
		},
		"byProject": byProject,
		"byPayment": byPayment,
		"daily":     daily,
	})
}

func (h *httpHandler) handleDelete(c *gin.Context) {
	result, err := h.records.Delete(c.Request.Context(), records.DeleteRequest{
		Target:        c.Param("id"),
		BatchID:       c.Query("batchId"),
		AdminPassword: c.Query("adminPassword"),
		CallerAddr:    c.ClientIP(),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondData(c, gin.H{"deletedCount": result.DeletedCount})
}

func (h *httpHandler) handleExport(c *gin.Context) {
	result, err := h.records.Export(c.Request.Context())
	if err != nil {
		h.logger.Error("csv export failed", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", result.Content)
}
