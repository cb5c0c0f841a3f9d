package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "massupload/internal/errors"
	"massupload/internal/middleware"
	"massupload/internal/operations"
	"massupload/internal/services"
	"massupload/internal/shared/testutil"
	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/upload/uploadtest"
	"massupload/internal/uploadtypes/partmaster"
)

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Types() []*upload.UploadTypeConfig {
	return m.Called().Get(0).([]*upload.UploadTypeConfig)
}

func (m *MockUploadService) Template(typ upload.UploadType, w io.Writer) error {
	return m.Called(typ, w).Error(0)
}

func (m *MockUploadService) Process(ctx context.Context, sub services.Submission) (*services.Outcome, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Outcome), args.Error(1)
}

func (m *MockUploadService) Submit(ctx context.Context, sub services.Submission) (*operations.Job, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockUploadService) Job(id string) (*operations.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockUploadService) Status(id string) (operations.UploadSnapshot, bool) {
	args := m.Called(id)
	return args.Get(0).(operations.UploadSnapshot), args.Bool(1)
}

func (m *MockUploadService) History(ctx context.Context, user string, limit int) ([]store.UploadLog, error) {
	args := m.Called(ctx, user, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.UploadLog), args.Error(1)
}

func (m *MockUploadService) AnnotatedPath(ctx context.Context, id, user string) (string, error) {
	args := m.Called(ctx, id, user)
	return args.String(0), args.Error(1)
}

const maxTestBytes = 1 << 20

func setupUploadRouter(t *testing.T, maxBytes int64) (chi.Router, *MockUploadService) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := &MockUploadService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })

	handler := NewUploadHandler(svc, middleware.NewValidator(logger), apierrors.NewErrorHandler(logger, false), maxBytes, 10, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/upload-types", handler.TypeRoutes())
	r.Mount("/api/uploads", handler.Routes())
	return r, svc
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile(FileField, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, target, user, filename string, data []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, filename, data)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUploadHandler_ListTypes(t *testing.T) {
	router, svc := setupUploadRouter(t, maxTestBytes)
	svc.On("Types").Return([]*upload.UploadTypeConfig{partmaster.Config})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-types", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	types := decode(t, rec)["types"].([]any)
	require.Len(t, types, 1)
	first := types[0].(map[string]any)
	assert.Equal(t, "PART_MASTER", first["type"])
	assert.Equal(t, "/api/upload-types/PART_MASTER/template", first["template"])
	assert.Len(t, first["required"], 2)
}

func TestUploadHandler_Template(t *testing.T) {
	t.Run("known type", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Template", partmaster.Type, mock.Anything).
			Run(func(args mock.Arguments) {
				_, _ = args.Get(1).(io.Writer).Write([]byte("workbook"))
			}).
			Return(nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-types/PART_MASTER/template", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "PART_MASTER_template.xlsx")
		assert.Equal(t, "workbook", rec.Body.String())
	})

	t.Run("unknown type", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Template", upload.UploadType("BOGUS"), mock.Anything).
			Return(fmt.Errorf("%w: BOGUS", upload.ErrUnknownUploadType))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload-types/BOGUS/template", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "UNKNOWN_UPLOAD_TYPE", decode(t, rec)["error_code"])
	})
}

func TestUploadHandler_Create(t *testing.T) {
	workbook := uploadtest.XLSX(t,
		uploadtest.Row("PART_12NC", "DESCRIPTION"),
		uploadtest.Row("934056781234", "Resistor 10k"))

	isSubmission := mock.MatchedBy(func(sub services.Submission) bool {
		return sub.Type == partmaster.Type && sub.User == "planner" &&
			sub.Filename == "parts.xlsx" && bytes.Equal(sub.Data, workbook)
	})

	t.Run("inline", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Process", mock.Anything, isSubmission).Return(&services.Outcome{
			UploadID: "u-1",
			Type:     string(partmaster.Type),
			User:     "planner",
			Status:   store.UploadStatusCompleted,
			Summary:  upload.Summary{Counts: upload.Counts{Success: 1, Insert: 1}},
		}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "/api/uploads/PART_MASTER", "planner", "parts.xlsx", workbook))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, "u-1", body["uploadId"])
		assert.Equal(t, "completed", body["status"])
	})

	t.Run("queued", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Submit", mock.Anything, isSubmission).Return(&operations.Job{
			ID:     "u-2",
			Type:   string(partmaster.Type),
			User:   "planner",
			Status: operations.JobStatusPending,
		}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "/api/uploads/PART_MASTER?async=true", "planner", "parts.xlsx", workbook))

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, "u-2", body["uploadId"])
		assert.Equal(t, "/api/uploads/jobs/u-2", body["pollUrl"])
	})

	t.Run("queue full", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Submit", mock.Anything, isSubmission).Return(nil, operations.ErrQueueFull)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "/api/uploads/PART_MASTER?async=1", "planner", "parts.xlsx", workbook))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "QUEUE_FULL", decode(t, rec)["error_code"])
	})

	t.Run("unreadable workbook", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Process", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: zip: not a valid zip file", services.ErrUnreadableWorkbook))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "/api/uploads/PART_MASTER", "planner", "parts.xlsx", []byte("nope")))

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "UNREADABLE_SHEET", decode(t, rec)["error_code"])
	})

	t.Run("unknown type", func(t *testing.T) {
		router, svc := setupUploadRouter(t, maxTestBytes)
		svc.On("Process", mock.Anything, mock.Anything).Return(nil, upload.ErrUnknownUploadType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "/api/uploads/BOGUS", "planner", "parts.xlsx", workbook))

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "UNKNOWN_UPLOAD_TYPE", decode(t, rec)["error_code"])
	})

	tests := []struct {
		name     string
		target   string
		user     string
		filename string
		data     []byte
		maxBytes int64
		status   int
		code     string
	}{
		{"missing user", "/api/uploads/PART_MASTER", "", "parts.xlsx", workbook, maxTestBytes, http.StatusUnauthorized, "MISSING_USER"},
		{"malformed type", "/api/uploads/part-master", "planner", "parts.xlsx", workbook, maxTestBytes, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing file", "/api/uploads/PART_MASTER", "planner", "", nil, maxTestBytes, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad async flag", "/api/uploads/PART_MASTER?async=maybe", "planner", "parts.xlsx", workbook, maxTestBytes, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"file too large", "/api/uploads/PART_MASTER", "planner", "parts.xlsx", bytes.Repeat([]byte("x"), 8192), 1024, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupUploadRouter(t, tt.maxBytes)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, tt.target, tt.user, tt.filename, tt.data))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode(t, rec)["error_code"])
		})
	}
}

func TestUploadHandler_JobStatus(t *testing.T) {
	router, svc := setupUploadRouter(t, maxTestBytes)
	svc.On("Job", "u-1").Return(&operations.Job{ID: "u-1", User: "planner", Status: operations.JobStatusRunning}, nil)
	svc.On("Status", "u-1").Return(operations.UploadSnapshot{UploadID: "u-1", Phase: upload.PhaseTransform, Percent: 40}, true)

	get := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/jobs/u-1", nil)
		req.Header.Set(middleware.UserIDHeader, user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("planner")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "running", body["job"].(map[string]any)["status"])
	assert.Equal(t, 40.0, body["progress"].(map[string]any)["percent"])

	rec = get("intruder")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode(t, rec)["error_code"])
}

func TestUploadHandler_Annotated(t *testing.T) {
	router, svc := setupUploadRouter(t, maxTestBytes)

	path := filepath.Join(t.TempDir(), "u-1.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("annotated"), 0o644))
	svc.On("AnnotatedPath", mock.Anything, "u-1", "planner").Return(path, nil)
	svc.On("AnnotatedPath", mock.Anything, "u-2", "planner").Return("", services.ErrNoAnnotatedCopy)
	svc.On("AnnotatedPath", mock.Anything, "u-3", "planner").Return("", services.ErrUploadNotFound)

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+id+"/annotated", nil)
		req.Header.Set(middleware.UserIDHeader, "planner")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("u-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "annotated", rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	rec = get("u-2")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_ANNOTATED_COPY", decode(t, rec)["error_code"])

	rec = get("u-3")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UPLOAD_NOT_FOUND", decode(t, rec)["error_code"])
}

func TestUploadHandler_History(t *testing.T) {
	router, svc := setupUploadRouter(t, maxTestBytes)
	svc.On("History", mock.Anything, "planner", 5).Return([]store.UploadLog{
		{ID: "u-1", UploadType: "PART_MASTER", UserID: "planner", Status: store.UploadStatusCompleted},
	}, nil)

	get := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/history"+query, nil)
		req.Header.Set(middleware.UserIDHeader, "planner")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["count"])
	entry := body["uploads"].([]any)[0].(map[string]any)
	assert.Equal(t, "u-1", entry["id"])
	assert.NotContains(t, entry, "annotated")

	rec = get("?limit=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "limit"))

	rec = get("?limit=5&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "upload_id,upload_type")
	assert.Contains(t, rec.Body.String(), "u-1,PART_MASTER,planner")

	rec = get("?format=xml")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_FORMAT", decode(t, rec)["error_code"])
}
