package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
)

// fakeJobService lets each test script the use case behavior.
type fakeJobService struct {
	submitJob  *model.Job
	submitErr  error
	getJob     *model.Job
	getErr     error
	resultPath string
	resultName string
	resultErr  error
	listJobs   []*model.Job
	listErr    error
}

func (f *fakeJobService) Submit(ctx context.Context, filename string, file io.Reader) (*model.Job, error) {
	return f.submitJob, f.submitErr
}

func (f *fakeJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	return f.getJob, f.getErr
}

func (f *fakeJobService) Result(ctx context.Context, id string) (string, string, error) {
	return f.resultPath, f.resultName, f.resultErr
}

func (f *fakeJobService) List(ctx context.Context, offset, limit int) ([]*model.Job, error) {
	return f.listJobs, f.listErr
}

type fakeStatsService struct {
	byStatus map[string]int
	depth    int64
	err      error
}

func (f *fakeStatsService) Totals(ctx context.Context) (map[string]int, int64, error) {
	return f.byStatus, f.depth, f.err
}

func newTestServer(jobs JobService, stats StatsService) *Server {
	logger := zerolog.Nop()
	auth := NewAuthManager("test-secret", false, 30*time.Minute)
	return NewServer(jobs, stats, auth, "test-api-key", 1<<20, &logger)
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadHandler_Accepted(t *testing.T) {
	t.Parallel()

	job := &model.Job{ID: "j1", Status: model.JobStatusQueued, Filename: "plan.dwg"}
	srv := newTestServer(&fakeJobService{submitJob: job}, &fakeStatsService{})

	body, contentType := multipartUpload(t, "file", "plan.dwg", []byte("dwg"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "j1" || resp.Status != "queued" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadHandler_MissingFile(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobService{}, &fakeStatsService{})
	body, contentType := multipartUpload(t, "wrong_field", "plan.dwg", []byte("dwg"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "missing_file" {
		t.Fatalf("expected missing_file, got %q", resp.Error)
	}
}

func TestUploadHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unsupported", domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
		{"queue down", domain.ErrQueueUnavailable, http.StatusServiceUnavailable, "queue_unavailable"},
		{"invalid", domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_upload"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(&fakeJobService{submitErr: tc.err}, &fakeStatsService{})
			body, contentType := multipartUpload(t, "file", "plan.dwg", []byte("dwg"))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != tc.wantCode {
				t.Fatalf("expected error %q, got %q", tc.wantCode, resp.Error)
			}
		})
	}
}

func TestStatusHandler(t *testing.T) {
	t.Parallel()

	job := &model.Job{
		ID:          "j1",
		Status:      model.JobStatusDone,
		Filename:    "plan.dwg",
		ItemsParsed: 10,
		UniqueItems: 3,
	}
	srv := newTestServer(&fakeJobService{getJob: job}, &fakeStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result == nil {
		t.Fatalf("expected result block for done job")
	}
	if resp.Result.ItemsParsed != 10 || resp.Result.UniqueItems != 3 {
		t.Fatalf("unexpected result: %+v", resp.Result)
	}
}

func TestStatusHandler_NotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobService{getErr: domain.ErrNotFound}, &fakeStatsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResultHandler_Download(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "BOQ_Output.xlsx")
	if err := os.WriteFile(path, []byte("workbook-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	srv := newTestServer(&fakeJobService{resultPath: path, resultName: "BOQ_j1.xlsx"}, &fakeStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="BOQ_j1.xlsx"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Body.String() != "workbook-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestResultHandler_NotReady(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobService{resultErr: domain.ErrOutputNotReady}, &fakeStatsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/j1/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "result_not_ready" {
		t.Fatalf("expected result_not_ready, got %q", resp.Error)
	}
}

func TestAdminRoutes_RequireAuth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobService{}, &fakeStatsService{byStatus: map[string]int{"done": 1}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer test-api-key")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with API key, got %d", rec.Code)
	}
	var resp struct {
		Jobs       map[string]int `json:"jobs_by_status"`
		QueueDepth int64          `json:"queue_depth"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Jobs["done"] != 1 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
}

func TestListHandler_Pagination(t *testing.T) {
	t.Parallel()

	jobs := []*model.Job{
		{ID: "j2", Status: model.JobStatusQueued},
		{ID: "j1", Status: model.JobStatusDone},
	}
	srv := newTestServer(&fakeJobService{listJobs: jobs}, &fakeStatsService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?offset=0&limit=2", nil)
	req.Header.Set("Authorization", "Bearer test-api-key")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data  []jobResponse `json:"data"`
		Limit int           `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 || resp.Limit != 2 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeJobService{}, &fakeStatsService{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
