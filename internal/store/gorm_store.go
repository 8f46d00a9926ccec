package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Ahaxin/myday/internal/models"
)

// GormStore implements Store on a GORM database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, mapGormErr("get user", err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, mapGormErr("get user by email", err)
	}
	return &user, nil
}

func (s *GormStore) CreateEntry(ctx context.Context, entry *models.Entry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *GormStore) GetEntry(ctx context.Context, id uint) (*models.Entry, error) {
	var entry models.Entry
	if err := s.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, mapGormErr("get entry", err)
	}
	return &entry, nil
}

func (s *GormStore) SaveEntry(ctx context.Context, entry *models.Entry) error {
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return nil
}

func (s *GormStore) ListEntries(ctx context.Context, filter EntryFilter) ([]models.Entry, error) {
	q := s.db.WithContext(ctx).Model(&models.Entry{}).Where("user_id = ?", filter.UserID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at <= ?", *filter.DateTo)
	}

	order := "created_at DESC"
	if filter.Order == SortAsc {
		order = "created_at ASC"
	}
	q = q.Order(order)

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var entries []models.Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *GormStore) CreateExport(ctx context.Context, export *models.ExportRequest) error {
	if err := s.db.WithContext(ctx).Create(export).Error; err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

func (s *GormStore) GetExport(ctx context.Context, id uint) (*models.ExportRequest, error) {
	var export models.ExportRequest
	if err := s.db.WithContext(ctx).First(&export, id).Error; err != nil {
		return nil, mapGormErr("get export", err)
	}
	return &export, nil
}

func (s *GormStore) SaveExport(ctx context.Context, export *models.ExportRequest) error {
	if err := s.db.WithContext(ctx).Save(export).Error; err != nil {
		return fmt.Errorf("save export: %w", err)
	}
	return nil
}

func (s *GormStore) ListExports(ctx context.Context, userID uint) ([]models.ExportRequest, error) {
	var exports []models.ExportRequest
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&exports).Error
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return exports, nil
}

func mapGormErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
