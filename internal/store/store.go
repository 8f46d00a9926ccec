// Package store is the single source of truth for persisted entry and
// export state. Jobs and handlers go through the Store interface; GormStore
// backs production, MemoryStore backs tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Ahaxin/myday/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SortOrder for entry listings.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// EntryFilter narrows an entry listing. DateFrom/DateTo are inclusive
// bounds on CreatedAt.
type EntryFilter struct {
	UserID   uint
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	Order    SortOrder
	Limit    int
	Offset   int
}

// Store provides durable access to users, entries, and export requests.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateEntry(ctx context.Context, entry *models.Entry) error
	GetEntry(ctx context.Context, id uint) (*models.Entry, error)
	SaveEntry(ctx context.Context, entry *models.Entry) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.Entry, error)

	CreateExport(ctx context.Context, export *models.ExportRequest) error
	GetExport(ctx context.Context, id uint) (*models.ExportRequest, error)
	SaveExport(ctx context.Context, export *models.ExportRequest) error
	ListExports(ctx context.Context, userID uint) ([]models.ExportRequest, error)
}
