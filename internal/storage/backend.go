// Package storage provides object storage access for audio uploads and
// export archives, plus the bounded, retrying audio fetcher used by the
// background pipeline.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ahaxin/myday/internal/config"
)

// Backend abstracts the object storage provider. The variant is selected
// once at process startup, not re-checked per call.
type Backend interface {
	// Upload stores an object and returns its public URL.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Exists reports whether the object is present in storage.
	Exists(ctx context.Context, key string) (bool, error)
	// SignedUploadURL returns a pre-signed PUT URL for direct client upload.
	SignedUploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	// PublicURL returns the public download URL for an object key.
	PublicURL(key string) string
}

// NewBackend selects the storage backend from configuration.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		return NewMinioBackend(cfg)
	case config.StorageBackendPlaceholder, "":
		return &PlaceholderBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// PlaceholderBackend is a deterministic, always-succeeding backend used when
// no real provider is configured. It lets the pipeline run without network
// access.
type PlaceholderBackend struct{}

func (p *PlaceholderBackend) Upload(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return p.PublicURL(key), nil
}

func (p *PlaceholderBackend) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (p *PlaceholderBackend) SignedUploadURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://uploads.example.com/" + key, nil
}

func (p *PlaceholderBackend) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

// ObjectKey generates the object key for a new audio upload using the
// convention users/{id}/YYYY-MM-DD_HH-MM-SS_{uuid8}.{suffix}.
func ObjectKey(userID uint, suffix string) string {
	ts := time.Now().UTC().Format("2006-01-02_15-04-05")
	short := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("users/%d/%s_%s.%s", userID, ts, short, suffix)
}
