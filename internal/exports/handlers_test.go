package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ahaxin/myday/internal/auth"
	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/storage"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/worker"
)

type testEnv struct {
	router *gin.Engine
	store  *store.MemoryStore
	user   *models.User
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecret: "test-secret", TokenExpiry: time.Hour}

	st := store.NewMemoryStore()
	user := &models.User{Email: "demo@example.com"}
	if err := st.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := auth.IssueToken(cfg.JWTSecret, user.ID, user.Email, cfg.TokenExpiry)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exportJob := &worker.ExportJob{Store: st, Storage: &storage.PlaceholderBackend{}, Logger: logger}
	dispatcher := worker.NewSyncDispatcher(nil, exportJob, logger)

	h := &Handlers{Store: st, Dispatcher: dispatcher}

	router := gin.New()
	authed := router.Group("/v1", auth.RequireAuth(cfg.JWTSecret, st))
	{
		authed.POST("/exports", h.Create)
		authed.GET("/exports", h.List)
		authed.GET("/exports/:id", h.Get)
	}

	return &testEnv{router: router, store: st, user: user, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateExportCompletesInline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clean := "A fine day."
	entry := &models.Entry{
		UserID:          env.user.ID,
		CreatedAt:       time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		Status:          models.EntryStatusTranscribed,
		TranscriptClean: &clean,
	}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/exports", gin.H{
		"user_id":   env.user.ID,
		"date_from": "2026-03-01T00:00:00Z",
		"date_to":   "2026-03-31T23:59:59Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var export models.ExportRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// Sync mode: the job already finished, so the response carries the
	// terminal state.
	if export.Status != models.ExportStatusComplete {
		t.Errorf("expected complete status in response, got %s", export.Status)
	}
	if export.ResultURL == nil || !strings.Contains(*export.ResultURL, "exports/1/export_") {
		t.Errorf("unexpected result URL %v", export.ResultURL)
	}
}

func TestCreateExportRejectsInvertedRange(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/exports", gin.H{
		"user_id":   env.user.ID,
		"date_from": "2026-03-31T00:00:00Z",
		"date_to":   "2026-03-01T00:00:00Z",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestCreateExportRejectsMismatchedUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/exports", gin.H{
		"user_id":   env.user.ID + 1,
		"date_from": "2026-03-01T00:00:00Z",
		"date_to":   "2026-03-31T00:00:00Z",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for mismatched user, got %d", rec.Code)
	}
}

func TestListExportsReturnsOwnOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := &models.ExportRequest{UserID: env.user.ID, Status: models.ExportStatusComplete}
	other := &models.ExportRequest{UserID: env.user.ID + 99, Status: models.ExportStatusComplete}
	if err := env.store.CreateExport(ctx, mine); err != nil {
		t.Fatalf("seed export: %v", err)
	}
	if err := env.store.CreateExport(ctx, other); err != nil {
		t.Fatalf("seed export: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/v1/exports", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var exports []models.ExportRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &exports); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(exports) != 1 || exports[0].ID != mine.ID {
		t.Errorf("expected only own export, got %+v", exports)
	}
}

func TestGetExportHidesForeignRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	foreign := &models.ExportRequest{UserID: env.user.ID + 99, Status: models.ExportStatusComplete}
	if err := env.store.CreateExport(ctx, foreign); err != nil {
		t.Fatalf("seed export: %v", err)
	}

	if rec := env.do(t, http.MethodGet, "/v1/exports/2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign export, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/exports/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing export, got %d", rec.Code)
	}
}
