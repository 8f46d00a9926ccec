package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ahaxin/myday/internal/models"
)

// MemoryStore is an in-memory Store for tests and local development.
// All methods copy records in and out so callers never share memory with
// the store.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[uint]models.User
	entries map[uint]models.Entry
	exports map[uint]models.ExportRequest
	nextID  uint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint]models.User),
		entries: make(map[uint]models.Entry),
		exports: make(map[uint]models.ExportRequest),
		nextID:  1,
	}
}

func (s *MemoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = s.allocID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateEntry(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == 0 {
		entry.ID = s.allocID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id uint) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *MemoryStore) SaveEntry(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == 0 {
		entry.ID = s.allocID()
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *MemoryStore) ListEntries(_ context.Context, filter EntryFilter) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Entry
	for _, entry := range s.entries {
		if entry.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		if filter.DateFrom != nil && entry.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && entry.CreatedAt.After(*filter.DateTo) {
			continue
		}
		matched = append(matched, entry)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.Order == SortAsc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) CreateExport(_ context.Context, export *models.ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if export.ID == 0 {
		export.ID = s.allocID()
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now().UTC()
	}
	s.exports[export.ID] = *export
	return nil
}

func (s *MemoryStore) GetExport(_ context.Context, id uint) (*models.ExportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	export, ok := s.exports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &export, nil
}

func (s *MemoryStore) SaveExport(_ context.Context, export *models.ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if export.ID == 0 {
		export.ID = s.allocID()
	}
	s.exports[export.ID] = *export
	return nil
}

func (s *MemoryStore) ListExports(_ context.Context, userID uint) ([]models.ExportRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.ExportRequest
	for _, export := range s.exports {
		if export.UserID == userID {
			matched = append(matched, export)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}
