package storage

import "errors"

// Sentinel errors for object storage and audio fetch failures.
var (
	// ErrPayloadTooLarge indicates a download exceeded the configured
	// byte ceiling.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum allowed size")

	// ErrDownloadFailed indicates all fetch attempts were exhausted.
	ErrDownloadFailed = errors.New("audio download failed")

	// ErrStorageUnavailable indicates the storage provider rejected or
	// failed an operation.
	ErrStorageUnavailable = errors.New("storage provider unavailable")
)
