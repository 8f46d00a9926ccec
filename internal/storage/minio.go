package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Ahaxin/myday/internal/config"
)

// MinioBackend implements Backend for MinIO/S3 compatible storage.
type MinioBackend struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	endpoint      string
	useSSL        bool
}

// NewMinioBackend connects to the configured S3-compatible endpoint.
func NewMinioBackend(cfg *config.Config) (*MinioBackend, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.S3Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return &MinioBackend{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: cfg.S3PublicBaseURL,
		endpoint:      endpoint,
		useSSL:        cfg.S3UseSSL,
	}, nil
}

func (m *MinioBackend) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %v", ErrStorageUnavailable, key, err)
	}
	return m.PublicURL(key), nil
}

func (m *MinioBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat object %s: %v", ErrStorageUnavailable, key, err)
	}
	return true, nil
}

func (m *MinioBackend) SignedUploadURL(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("%w: presign put %s: %v", ErrStorageUnavailable, key, err)
	}
	_ = contentType // content type is enforced at upload time, not in the presigned URL
	return u.String(), nil
}

func (m *MinioBackend) PublicURL(key string) string {
	if m.publicBaseURL != "" {
		return strings.TrimRight(m.publicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if m.useSSL {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: m.endpoint, Path: "/" + m.bucket + "/" + key}
	return u.String()
}
