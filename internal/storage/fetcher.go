package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Ahaxin/myday/internal/config"
)

const fetchChunkSize = 64 * 1024

// Fetcher downloads remote audio objects to local temp files with a byte
// ceiling, per-attempt timeout, and bounded exponential-backoff retries.
type Fetcher struct {
	httpClient  *http.Client
	maxBytes    int64
	maxAttempts int
	timeout     time.Duration

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewFetcher builds a Fetcher from configuration.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		httpClient:  &http.Client{},
		maxBytes:    cfg.AudioMaxBytes,
		maxAttempts: cfg.AudioMaxRetries,
		timeout:     cfg.AudioTimeout,
		sleep:       time.Sleep,
	}
}

// FetchToFile streams the resource at url into a temp file and returns its
// path. The caller owns the file and must remove it. Failures are retried
// up to the attempt ceiling with backoff 1s, 2s, 4s, capped at 8s; the last
// error is wrapped in ErrDownloadFailed. A download exceeding the byte
// ceiling fails with ErrPayloadTooLarge and leaves no partial file behind.
func (f *Fetcher) FetchToFile(ctx context.Context, url string) (string, error) {
	var lastErr error
	backoff := 1 * time.Second

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			f.sleep(backoff)
			backoff *= 2
			if backoff > 8*time.Second {
				backoff = 8 * time.Second
			}
		}

		path, err := f.fetchOnce(ctx, url)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w: %w", ErrDownloadFailed, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (path string, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "myday-audio-*.m4a")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	var written int64
	buf := make([]byte, fetchChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > f.maxBytes {
				return "", fmt.Errorf("%w (limit %d bytes)", ErrPayloadTooLarge, f.maxBytes)
			}
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("write chunk: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read body: %w", readErr)
		}
	}

	return tmp.Name(), nil
}
