package entries

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
	"github.com/Ahaxin/myday/internal/cleanup"
	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/storage"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/transcribe"
	"github.com/Ahaxin/myday/internal/worker"
)

type testEnv struct {
	router *gin.Engine
	store  *store.MemoryStore
	cfg    *config.Config
	user   *models.User
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		TokenExpiry:          time.Hour,
		StorageBackend:       config.StorageBackendPlaceholder,
		TranscriptionBackend: config.TranscriptionBackendStub,
		ExecMode:             config.ExecModeSync,
	}

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
	backend := &storage.PlaceholderBackend{}
	transcribeJob := &worker.TranscribeJob{
		Store:       st,
		Transcriber: &transcribe.StubBackend{},
		Cleaner:     cleanup.NewCleaner(cfg),
		Logger:      logger,
	}
	exportJob := &worker.ExportJob{Store: st, Storage: backend, Logger: logger}
	dispatcher := worker.NewSyncDispatcher(transcribeJob, exportJob, logger)

	h := &Handlers{Cfg: cfg, Store: st, Storage: backend, Dispatcher: dispatcher}

	router := gin.New()
	authed := router.Group("/v1", auth.RequireAuth(cfg.JWTSecret, st))
	{
		authed.POST("/entries", h.Create)
		authed.GET("/entries", h.List)
		authed.GET("/entries/:id", h.Get)
		authed.POST("/entries/:id/finalize", h.Finalize)
		authed.POST("/entries/:id/transcribe", h.Transcribe)
	}

	return &testEnv{router: router, store: st, cfg: cfg, user: user, token: token}
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

func TestCreateEntryIssuesUploadURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/entries", gin.H{"user_id": env.user.ID, "duration_s": 42})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		EntryID   uint   `json:"entry_id"`
		UploadURL string `json:"upload_url"`
		ObjectKey string `json:"object_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.UploadURL, "https://uploads.example.com/") {
		t.Errorf("unexpected upload URL %q", resp.UploadURL)
	}
	if !strings.HasPrefix(resp.ObjectKey, "users/1/") || !strings.HasSuffix(resp.ObjectKey, ".m4a") {
		t.Errorf("unexpected object key %q", resp.ObjectKey)
	}

	entry, err := env.store.GetEntry(context.Background(), resp.EntryID)
	if err != nil {
		t.Fatalf("entry not persisted: %v", err)
	}
	if entry.Status != models.EntryStatusUploaded {
		t.Errorf("expected uploaded status, got %s", entry.Status)
	}
	if entry.DurationS != 42 {
		t.Errorf("expected duration 42, got %d", entry.DurationS)
	}
}

func TestCreateEntryRejectsMismatchedUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/entries", gin.H{"user_id": env.user.ID + 1})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestCreateEntryRejectsMissingBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/entries", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestFinalizeRunsTranscriptionInline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusUploaded}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/entries/2/finalize", gin.H{"object_key": "users/1/audio.m4a"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Sync mode: the pipeline has already run by the time the handler returns.
	finalized, err := env.store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if finalized.Status != models.EntryStatusTranscribed {
		t.Fatalf("expected transcribed, got %s", finalized.Status)
	}
	if finalized.AudioURL == nil || !strings.HasPrefix(*finalized.AudioURL, "https://cdn.example.com/") {
		t.Errorf("unexpected audio URL %v", finalized.AudioURL)
	}
	if finalized.TranscriptRaw == nil || *finalized.TranscriptRaw != transcribe.StubTranscript {
		t.Errorf("unexpected raw transcript %v", finalized.TranscriptRaw)
	}
	if finalized.IdempotencyToken == nil || *finalized.IdempotencyToken == "" {
		t.Error("expected an idempotency token to be set")
	}
}

func TestFinalizeRequiresObjectKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusUploaded}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/entries/2/finalize", gin.H{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestTranscribeReEnqueuesFailedEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusFailed}
	entry.SetFailure("engine crashed")
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/entries/2/transcribe", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reloaded, err := env.store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if reloaded.Status != models.EntryStatusTranscribed {
		t.Errorf("expected transcribed after re-enqueue, got %s", reloaded.Status)
	}
}

func TestTranscribeReplacesStoredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stored := "aaaaaaaaaaaaaaaa"
	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusFailed, IdempotencyToken: &stored}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/entries/2/transcribe", gin.H{"idempotency_token": "bbbbbbbbbbbbbbbb"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	reloaded, err := env.store.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if reloaded.IdempotencyToken == nil || *reloaded.IdempotencyToken != "bbbbbbbbbbbbbbbb" {
		t.Errorf("expected caller token to replace the stored one, got %v", reloaded.IdempotencyToken)
	}
	if reloaded.Status != models.EntryStatusTranscribed {
		t.Errorf("expected transcribed, got %s", reloaded.Status)
	}
}

func TestFinalizeRejectsNonUploadedStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	processing := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusProcessing}
	transcribed := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusTranscribed}
	for _, entry := range []*models.Entry{processing, transcribed} {
		if err := env.store.CreateEntry(ctx, entry); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	if rec := env.do(t, http.MethodPost, "/v1/entries/2/finalize", gin.H{"object_key": "users/1/a.m4a"}); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 finalizing a processing entry, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/entries/3/finalize", gin.H{"object_key": "users/1/a.m4a"}); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 finalizing a transcribed entry, got %d", rec.Code)
	}
}

func TestTranscribeRejectsTranscribedEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusTranscribed}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	if rec := env.do(t, http.MethodPost, "/v1/entries/2/transcribe", nil); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 re-enqueueing a transcribed entry, got %d", rec.Code)
	}
}

func TestTranscribeAllowsStuckProcessingEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Processing with no token: the enqueue was swallowed and the entry is
	// stranded; the re-enqueue endpoint is the recovery path.
	entry := &models.Entry{UserID: env.user.ID, Status: models.EntryStatusProcessing}
	if err := env.store.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/entries/2/transcribe", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	reloaded, _ := env.store.GetEntry(ctx, entry.ID)
	if reloaded.Status != models.EntryStatusTranscribed {
		t.Errorf("expected recovery to transcribed, got %s", reloaded.Status)
	}
	if reloaded.IdempotencyToken == nil || *reloaded.IdempotencyToken == "" {
		t.Error("expected a fresh token to be persisted")
	}
}

func TestListEntriesFiltersAndValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, status := range []string{models.EntryStatusTranscribed, models.EntryStatusFailed, models.EntryStatusTranscribed} {
		if err := env.store.CreateEntry(ctx, &models.Entry{UserID: env.user.ID, Status: status}); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/v1/entries?status=transcribed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []models.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 transcribed entries, got %d", len(entries))
	}

	if rec := env.do(t, http.MethodGet, "/v1/entries?status=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/entries?limit=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for limit 0, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/entries?limit=500", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for limit 500, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/entries?date_from=garbage", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date_from, got %d", rec.Code)
	}
}

func TestGetEntryHidesForeignEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	foreign := &models.Entry{UserID: env.user.ID + 99, Status: models.EntryStatusTranscribed}
	if err := env.store.CreateEntry(ctx, foreign); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	if rec := env.do(t, http.MethodGet, "/v1/entries/2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign entry, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/entries/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing entry, got %d", rec.Code)
	}
}

func TestEntriesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/entries", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with bad token, got %d", rec.Code)
	}
}
