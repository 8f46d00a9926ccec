package worker

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/storage"
	"github.com/Ahaxin/myday/internal/store"
)

// ExportJob bundles all of a user's entries in a date range into one zip
// archive and republishes it to object storage.
type ExportJob struct {
	Store   store.Store
	Storage storage.Backend
	Fetcher AudioFetcher
	Logger  *slog.Logger
}

// Run executes the export pipeline for one request. The request row is
// always left in a terminal, persisted state; per-entry audio fetch
// failures are swallowed and only omit that entry's audio from the archive.
func (j *ExportJob) Run(ctx context.Context, exportID uint) Result {
	export, err := j.Store.GetExport(ctx, exportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			j.Logger.Error("Export request not found", "export_id", exportID)
			return Result{OK: false, ID: exportID, Err: "not_found"}
		}
		return Result{OK: false, ID: exportID, Err: err.Error()}
	}

	// Visible to polling clients before the heavy work begins.
	export.Status = models.ExportStatusProcessing
	if err := j.Store.SaveExport(ctx, export); err != nil {
		return Result{OK: false, ID: exportID, Err: fmt.Sprintf("persist export: %v", err)}
	}

	j.Logger.Info("Processing export:generate task",
		"export_id", exportID,
		"user_id", export.UserID,
		"date_from", export.DateFrom,
		"date_to", export.DateTo,
	)

	resultURL, buildErr := j.buildAndPublish(ctx, export)
	if buildErr != nil {
		export.Status = models.ExportStatusFailed
		export.ResultURL = nil
		j.Logger.Error("Export failed", "export_id", exportID, "error", buildErr.Error())
	} else {
		export.Status = models.ExportStatusComplete
		export.ResultURL = &resultURL
	}

	if err := j.Store.SaveExport(ctx, export); err != nil {
		return Result{OK: false, ID: exportID, Status: export.Status, Err: fmt.Sprintf("persist export: %v", err)}
	}

	result := Result{OK: export.Status == models.ExportStatusComplete, ID: exportID, Status: export.Status}
	if buildErr != nil {
		result.Err = buildErr.Error()
	}
	return result
}

func (j *ExportJob) buildAndPublish(ctx context.Context, export *models.ExportRequest) (string, error) {
	entries, err := j.Store.ListEntries(ctx, store.EntryFilter{
		UserID:   export.UserID,
		DateFrom: &export.DateFrom,
		DateTo:   &export.DateTo,
		Order:    store.SortAsc,
	})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i := range entries {
		entry := &entries[i]
		base := entry.CreatedAt.UTC().Format("2006-01-02_15-04-05")

		if entry.TranscriptClean != nil && *entry.TranscriptClean != "" {
			w, err := zw.Create(base + ".txt")
			if err != nil {
				return "", fmt.Errorf("add transcript %s: %w", base, err)
			}
			if _, err := w.Write([]byte(*entry.TranscriptClean)); err != nil {
				return "", fmt.Errorf("write transcript %s: %w", base, err)
			}
		}

		if entry.AudioURL != nil && *entry.AudioURL != "" {
			if err := j.addAudio(ctx, zw, base, *entry.AudioURL); err != nil {
				// Best effort: a single entry's audio never aborts the export.
				j.Logger.Warn("Skipping audio for entry",
					"export_id", export.ID,
					"entry_id", entry.ID,
					"error", err.Error(),
				)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	key := fmt.Sprintf("exports/%d/export_%d.zip", export.UserID, export.ID)
	resultURL, err := j.Storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/zip")
	if err != nil {
		return "", err
	}
	return resultURL, nil
}

// addAudio fetches one entry's audio and writes it into the archive under
// the entry's base name. The temp file is removed regardless of outcome.
func (j *ExportJob) addAudio(ctx context.Context, zw *zip.Writer, base, audioURL string) error {
	audioPath, err := j.Fetcher.FetchToFile(ctx, audioURL)
	if err != nil {
		return err
	}
	defer os.Remove(audioPath)

	data, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read fetched audio: %w", err)
	}

	w, err := zw.Create(base + audioExtension(audioURL))
	if err != nil {
		return fmt.Errorf("add audio member: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write audio member: %w", err)
	}
	return nil
}

// audioExtension derives the archive member extension from the audio URL,
// defaulting to .m4a.
func audioExtension(audioURL string) string {
	if u, err := url.Parse(audioURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && !strings.ContainsAny(ext, "/\\") {
			return ext
		}
	}
	return ".m4a"
}
