package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/openmerit/registry-api/internal/audit"
	"github.com/openmerit/registry-api/internal/records"
	"gorm.io/gorm"
)

const testAdminPassword = "super-secret"

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&records.Record{}, &audit.Entry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	trail, err := audit.NewTrail(db, time.Now)
	if err != nil {
		t.Fatalf("failed to construct trail: %v", err)
	}

	service, err := records.NewService(records.ServiceConfig{
		Database:      db,
		Audit:         trail,
		Clock:         time.Now,
		IDProvider:    records.NewUUIDProvider(),
		AdminPassword: testAdminPassword,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{RecordsService: service})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler, db
}

func performRequest(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v (%s)", err, recorder.Body.String())
	}
	return env
}

func TestHandleSubmitStoresCoercedAmounts(t *testing.T) {
	handler, db := newTestRouter(t)

	recorder := performRequest(handler, http.MethodPost, "/api/records/submit",
		`{"data":[{"name":"A","amountTWD":"100"}]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	env := decodeEnvelope(t, recorder)
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", recorder.Body.String())
	}
	var data struct {
		SubmittedCount int    `json:"submittedCount"`
		BatchID        string `json:"batchId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.SubmittedCount != 1 || data.BatchID == "" {
		t.Fatalf("unexpected submit data %+v", data)
	}

	var stored records.Record
	if err := db.Take(&stored).Error; err != nil {
		t.Fatalf("failed to load stored record: %v", err)
	}
	if stored.AmountTWD != 100 {
		t.Fatalf("amount must be stored numerically, got %v", stored.AmountTWD)
	}
}

func TestHandleSubmitRejectsNonArrayData(t *testing.T) {
	handler, _ := newTestRouter(t)

	for _, body := range []string{`{"data":"nope"}`, `{}`} {
		recorder := performRequest(handler, http.MethodPost, "/api/records/submit", body)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, recorder.Code)
		}
		env := decodeEnvelope(t, recorder)
		if env.Success || env.Code != "validation" {
			t.Fatalf("body %s: unexpected envelope %s", body, recorder.Body.String())
		}
	}
}

func TestHandleSubmitDuplicateLocalIDConflicts(t *testing.T) {
	handler, _ := newTestRouter(t)

	first := performRequest(handler, http.MethodPost, "/api/records/submit",
		`{"data":[{"name":"A","localId":"L-1"}]}`)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first submit to succeed, got %d", first.Code)
	}

	second := performRequest(handler, http.MethodPost, "/api/records/submit",
		`{"data":[{"name":"B","localId":"L-1"}]}`)
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", second.Code, second.Body.String())
	}
	env := decodeEnvelope(t, second)
	if env.Success || env.Code != "conflict" {
		t.Fatalf("unexpected envelope %s", second.Body.String())
	}
}

func TestHandleListInvalidDateIsRejected(t *testing.T) {
	handler, _ := newTestRouter(t)

	recorder := performRequest(handler, http.MethodGet, "/api/records?startDate=not-a-date", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleListReturnsPaginationAndTotals(t *testing.T) {
	handler, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		recorder := performRequest(handler, http.MethodPost, "/api/records/submit",
			`{"data":[{"name":"A","project":"X","amountTWD":100}]}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("seed submit failed: %d", recorder.Code)
		}
	}

	recorder := performRequest(handler, http.MethodGet, "/api/records?project=X&limit=2", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	env := decodeEnvelope(t, recorder)
	var data struct {
		Records    []json.RawMessage `json:"records"`
		Pagination struct {
			Page       int   `json:"page"`
			Limit      int   `json:"limit"`
			TotalCount int64 `json:"totalCount"`
			TotalPages int64 `json:"totalPages"`
		} `json:"pagination"`
		Totals struct {
			Count     int64   `json:"count"`
			AmountTWD float64 `json:"amountTWD"`
		} `json:"totals"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if len(data.Records) != 2 {
		t.Fatalf("expected a page of 2, got %d", len(data.Records))
	}
	if data.Pagination.TotalCount != 3 || data.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected pagination %+v", data.Pagination)
	}
	if data.Totals.Count != 3 || data.Totals.AmountTWD != 300 {
		t.Fatalf("unexpected totals %+v", data.Totals)
	}
}

func TestHandleDeleteWrongPasswordUnauthorized(t *testing.T) {
	handler, db := newTestRouter(t)

	recorder := performRequest(handler, http.MethodPost, "/api/records/submit",
		`{"data":[{"name":"A"}]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("seed submit failed: %d", recorder.Code)
	}

	deleteRecorder := performRequest(handler, http.MethodDelete,
		"/api/records/all?adminPassword=wrong", "")
	if deleteRecorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", deleteRecorder.Code)
	}

	var count int64
	if err := db.Model(&records.Record{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count records: %v", err)
	}
	if count != 1 {
		t.Fatalf("record count must be unchanged, got %d", count)
	}
}

func TestHandleDeleteByBatch(t *testing.T) {
	handler, _ := newTestRouter(t)

	for _, batch := range []string{"B1", "B1", "B2"} {
		recorder := performRequest(handler, http.MethodPost, "/api/records/submit",
			fmt.Sprintf(`{"data":[{"name":"A"}],"batchId":%q}`, batch))
		if recorder.Code != http.StatusOK {
			t.Fatalf("seed submit failed: %d", recorder.Code)
		}
	}

	recorder := performRequest(handler, http.MethodDelete,
		"/api/records/batch?batchId=B1&adminPassword="+testAdminPassword, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	env := decodeEnvelope(t, recorder)
	var data struct {
		DeletedCount int64 `json:"deletedCount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.DeletedCount != 2 {
		t.Fatalf("expected 2 deletions, got %d", data.DeletedCount)
	}
}

func TestHandleExportSetsDownloadHeaders(t *testing.T) {
	handler, _ := newTestRouter(t)

	recorder := performRequest(handler, http.MethodGet, "/api/records/export", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("unexpected content type %q", got)
	}
	disposition := recorder.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "records_") || !strings.Contains(disposition, "_0.csv") {
		t.Fatalf("unexpected content disposition %q", disposition)
	}
	if !strings.HasPrefix(recorder.Body.String(), "\xEF\xBB\xBF") {
		t.Fatalf("expected a BOM-prefixed body")
	}
}

func TestHandleHealth(t *testing.T) {
	handler, _ := newTestRouter(t)

	recorder := performRequest(handler, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health body %s", recorder.Body.String())
	}
}

func TestNewHTTPHandlerRequiresService(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatalf("expected an error without a records service")
	}
}
