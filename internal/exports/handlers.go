// Package exports exposes the export request endpoints.
package exports

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ahaxin/myday/internal/auth"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/worker"
)

// Handlers bundles the dependencies of the export endpoints.
type Handlers struct {
	Store      store.Store
	Dispatcher *worker.Dispatcher
}

type createRequest struct {
	UserID   uint      `json:"user_id" binding:"required"`
	DateFrom time.Time `json:"date_from" binding:"required"`
	DateTo   time.Time `json:"date_to" binding:"required"`
}

// Create validates and registers an export request, then submits the
// export job. An inverted date range is rejected before any job runs.
func (h *Handlers) Create(c *gin.Context) {
	user := auth.CurrentUser(c)

	var payload createRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if payload.DateFrom.After(payload.DateTo) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be before date_to"})
		return
	}
	if payload.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id mismatch"})
		return
	}

	export := &models.ExportRequest{
		UserID:   user.ID,
		DateFrom: payload.DateFrom,
		DateTo:   payload.DateTo,
		Status:   models.ExportStatusPending,
	}
	if err := h.Store.CreateExport(c.Request.Context(), export); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create export"})
		return
	}

	h.Dispatcher.SubmitExport(c.Request.Context(), export.ID)

	// Re-read: in sync mode the job already finished and the terminal
	// state should be visible in the response.
	if refreshed, err := h.Store.GetExport(c.Request.Context(), export.ID); err == nil {
		export = refreshed
	}

	c.JSON(http.StatusCreated, export)
}

// List returns all export requests for the current user.
func (h *Handlers) List(c *gin.Context) {
	user := auth.CurrentUser(c)

	exports, err := h.Store.ListExports(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list exports"})
		return
	}
	if exports == nil {
		exports = []models.ExportRequest{}
	}
	c.JSON(http.StatusOK, exports)
}

// Get returns a single export request owned by the current user.
func (h *Handlers) Get(c *gin.Context) {
	user := auth.CurrentUser(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "export not found"})
		return
	}
	export, err := h.Store.GetExport(c.Request.Context(), uint(id))
	if err != nil || export.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "export not found"})
		return
	}
	c.JSON(http.StatusOK, export)
}
