// Package entries exposes the entry lifecycle endpoints: upload intent,
// finalize, re-enqueue transcription, and listing.
package entries

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Ahaxin/myday/internal/auth"
	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/storage"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/worker"
)

const uploadURLExpiry = time.Hour

// Handlers bundles the dependencies of the entry endpoints.
type Handlers struct {
	Cfg        *config.Config
	Store      store.Store
	Storage    storage.Backend
	Dispatcher *worker.Dispatcher
}

type createRequest struct {
	UserID    uint    `json:"user_id" binding:"required"`
	DurationS int     `json:"duration_s"`
	SizeBytes *int64  `json:"size_bytes"`
	Language  *string `json:"language"`
}

type createResponse struct {
	EntryID   uint   `json:"entry_id"`
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
}

// Create registers a new entry in uploaded state and issues a signed upload
// URL for the audio object.
func (h *Handlers) Create(c *gin.Context) {
	user := auth.CurrentUser(c)

	var payload createRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if payload.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id mismatch"})
		return
	}

	entry := &models.Entry{
		UserID:    user.ID,
		DurationS: payload.DurationS,
		SizeBytes: payload.SizeBytes,
		Language:  payload.Language,
		Status:    models.EntryStatusUploaded,
	}
	if err := h.Store.CreateEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create entry"})
		return
	}

	objectKey := storage.ObjectKey(user.ID, "m4a")
	uploadURL, err := h.Storage.SignedUploadURL(c.Request.Context(), objectKey, "audio/m4a", uploadURLExpiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate upload URL"})
		return
	}

	c.JSON(http.StatusCreated, createResponse{
		EntryID:   entry.ID,
		UploadURL: uploadURL,
		ObjectKey: objectKey,
	})
}

type finalizeRequest struct {
	ObjectKey string  `json:"object_key" binding:"required"`
	SizeBytes *int64  `json:"size_bytes"`
	Language  *string `json:"language"`
}

// Finalize records the uploaded audio object on the entry, moves it to
// processing with a fresh idempotency token, and submits the transcription
// job.
func (h *Handlers) Finalize(c *gin.Context) {
	user := auth.CurrentUser(c)

	entry, ok := h.loadOwnedEntry(c, user.ID)
	if !ok {
		return
	}

	var payload finalizeRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_key is required"})
		return
	}

	if !models.ValidEntryTransition(entry.Status, models.EntryStatusProcessing) {
		c.JSON(http.StatusConflict, gin.H{"error": "entry cannot be finalized in its current state"})
		return
	}

	if h.Cfg.VerifyUploads {
		exists, err := h.Storage.Exists(c.Request.Context(), payload.ObjectKey)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "storage verification failed"})
			return
		}
		if !exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded object not found in storage"})
			return
		}
	}

	audioURL := h.Storage.PublicURL(payload.ObjectKey)
	entry.AudioURL = &audioURL
	if payload.SizeBytes != nil {
		entry.SizeBytes = payload.SizeBytes
	}
	if payload.Language != nil {
		entry.Language = payload.Language
	}
	entry.Status = models.EntryStatusProcessing
	// Assign a fresh token before dispatching; the job suppresses duplicate
	// deliveries of a terminal outcome by token equality.
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	entry.IdempotencyToken = &token

	if err := h.Store.SaveEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to finalize entry"})
		return
	}

	h.Dispatcher.SubmitTranscribe(c.Request.Context(), entry.ID, token)

	c.JSON(http.StatusOK, entry)
}

type transcribeRequest struct {
	IdempotencyToken string `json:"idempotency_token"`
}

// Transcribe (re-)enqueues transcription for an entry, replacing its
// idempotency token. This is the recovery path for entries stranded in
// processing or terminal failed state.
func (h *Handlers) Transcribe(c *gin.Context) {
	user := auth.CurrentUser(c)

	entry, ok := h.loadOwnedEntry(c, user.ID)
	if !ok {
		return
	}

	// An entry stuck in processing (e.g. after a swallowed enqueue) may be
	// re-driven; otherwise the normal transition rules apply.
	if entry.Status != models.EntryStatusProcessing &&
		!models.ValidEntryTransition(entry.Status, models.EntryStatusProcessing) {
		c.JSON(http.StatusConflict, gin.H{"error": "entry cannot be transcribed in its current state"})
		return
	}

	// Body is optional; without a token a fresh one is generated.
	var payload transcribeRequest
	_ = c.ShouldBindJSON(&payload)

	entry.Status = models.EntryStatusProcessing
	token := payload.IdempotencyToken
	if token == "" {
		token = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	entry.IdempotencyToken = &token

	if err := h.Store.SaveEntry(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update entry"})
		return
	}

	h.Dispatcher.SubmitTranscribe(c.Request.Context(), entry.ID, token)

	c.JSON(http.StatusOK, entry)
}

// List returns the current user's entries with optional status and date
// filters.
func (h *Handlers) List(c *gin.Context) {
	user := auth.CurrentUser(c)

	filter := store.EntryFilter{
		UserID: user.ID,
		Order:  store.SortDesc,
		Limit:  50,
	}

	if status := c.Query("status"); status != "" {
		switch status {
		case models.EntryStatusUploaded, models.EntryStatusProcessing,
			models.EntryStatusTranscribed, models.EntryStatusFailed:
			filter.Status = status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status value"})
			return
		}
	}

	for param, dest := range map[string]**time.Time{
		"since":     &filter.DateFrom,
		"date_from": &filter.DateFrom,
		"date_to":   &filter.DateTo,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param + " timestamp"})
			return
		}
		*dest = &ts
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
			return
		}
		filter.Offset = offset
	}

	entries, err := h.Store.ListEntries(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Get returns a single entry owned by the current user.
func (h *Handlers) Get(c *gin.Context) {
	user := auth.CurrentUser(c)
	entry, ok := h.loadOwnedEntry(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entry)
}

// loadOwnedEntry resolves the :id path parameter to an entry owned by
// userID, responding 404 otherwise.
func (h *Handlers) loadOwnedEntry(c *gin.Context, userID uint) (*models.Entry, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return nil, false
	}
	entry, err := h.Store.GetEntry(c.Request.Context(), uint(id))
	if err != nil || entry.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return nil, false
	}
	return entry, true
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}
