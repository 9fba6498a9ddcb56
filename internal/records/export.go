package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// exportColumns are the fixed, ordered CSV column labels.
var exportColumns = []string{
	"序號", "姓名", "項目", "方式", "內容", "付款狀態", "聯絡方式",
	"金額(台幣)", "金額(人民幣)", "提交時間", "裝置ID", "批次ID", "本地ID",
}

// utf8BOM lets spreadsheet tools detect the encoding.
const utf8BOM = "\xEF\xBB\xBF"

// ExportResult is the fully materialized CSV document.
type ExportResult struct {
	Filename string
	Content  []byte
	RowCount int
}

// Export serializes every record, sorted by submission instant descending,
// into the fixed 13-column CSV format. The whole set is materialized before
// serialization; there is no streaming path.
func (s *Service) Export(ctx context.Context) (ExportResult, error) {
	var rows []Record
	if err := s.db.WithContext(ctx).
		Order("submitted_at_s DESC, id DESC").
		Find(&rows).Error; err != nil {
		s.logError(opExport, "query_failed", err)
		return ExportResult{}, newError(KindStore, opExport, "query_failed", err)
	}

	var builder strings.Builder
	builder.WriteString(utf8BOM)
	writeExportLine(&builder, exportColumns)

	for index, row := range rows {
		writeExportLine(&builder, []string{
			strconv.Itoa(index + 1),
			row.Name,
			row.Project,
			flattenMethod(row.Method),
			row.Content,
			row.Payment,
			row.Contact,
			formatAmountRaw(row.AmountTWD),
			formatAmountFixed(row.AmountRMB),
			formatExportInstant(row.SubmittedAtSeconds),
			row.DeviceID,
			row.BatchID,
			stringValue(row.LocalID),
		})
	}

	filename := fmt.Sprintf("records_%s_%d.csv", s.clock().UTC().Format("2006-01-02"), len(rows))

	return ExportResult{
		Filename: filename,
		Content:  []byte(builder.String()),
		RowCount: len(rows),
	}, nil
}

// writeExportLine emits one CSV line with every field force-quoted and
// internal double quotes doubled.
func writeExportLine(builder *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteByte('"')
		builder.WriteString(strings.ReplaceAll(field, `"`, `""`))
		builder.WriteByte('"')
	}
	builder.WriteByte('\n')
}

var methodNewlineReplacer = strings.NewReplacer("\r\n", "; ", "\n", "; ", "\r", "; ")

// flattenMethod rewrites line breaks so the method column stays one visual
// line in spreadsheet tools.
func flattenMethod(method string) string {
	return methodNewlineReplacer.Replace(method)
}

func formatAmountRaw(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func formatAmountFixed(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func formatExportInstant(unixSeconds int64) string {
	if unixSeconds <= 0 {
		return ""
	}
	return time.Unix(unixSeconds, 0).UTC().Format(time.RFC3339)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
