package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Ahaxin/myday/internal/cleanup"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/transcribe"
)

// AudioFetcher pulls a remote audio object down to a local temp file.
// Satisfied by *storage.Fetcher.
type AudioFetcher interface {
	FetchToFile(ctx context.Context, url string) (string, error)
}

// TranscribeJob turns an uploaded audio entry into a transcript: fetch the
// audio, run the speech-to-text backend, run the best-effort cleanup pass,
// and record the terminal status.
//
// No per-entry lock is taken across concurrent executions; duplicate
// delivery after a terminal outcome is suppressed by the transcribed
// short-circuit and the idempotency token. Near-simultaneous executions
// for an entry still in processing can both run the engine before either
// commits — that race is inherited from the system this replaces and
// tolerated.
type TranscribeJob struct {
	Store       store.Store
	Fetcher     AudioFetcher
	Transcriber transcribe.Backend
	Cleaner     *cleanup.Cleaner
	Logger      *slog.Logger
}

// Run executes the transcription pipeline for one entry. The final entry
// state, successful or failed, is always persisted before returning.
// A missing entry is reported without retry or state change.
func (j *TranscribeJob) Run(ctx context.Context, entryID uint, token string) Result {
	entry, err := j.Store.GetEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			j.Logger.Error("Entry not found", "entry_id", entryID)
			return Result{OK: false, ID: entryID, Err: "not_found"}
		}
		return Result{OK: false, ID: entryID, Err: err.Error()}
	}

	// Idempotent short-circuit: transcribed is terminal for a given token.
	if entry.Status == models.EntryStatusTranscribed {
		return Result{OK: true, ID: entryID, Status: entry.Status, Idempotent: true}
	}

	if token != "" {
		if entry.IdempotencyToken != nil && *entry.IdempotencyToken == token &&
			entry.Status == models.EntryStatusFailed {
			// The invocation carrying this token already ran to a terminal
			// failure; a duplicate delivery must not re-run the engine.
			// Re-driving a failed entry requires a fresh token via the
			// re-enqueue operation. A token match while still processing is
			// the in-flight invocation itself (the boundary persists the
			// token before dispatching) and proceeds.
			return Result{OK: true, ID: entryID, Status: entry.Status, Idempotent: true}
		}
		if entry.IdempotencyToken == nil {
			entry.IdempotencyToken = &token
		}
	}

	j.Logger.Info("Processing entry:transcribe task", "entry_id", entryID, "user_id", entry.UserID)

	if pipelineErr := j.runPipeline(ctx, entry); pipelineErr != nil {
		entry.SetFailure(failureMessage(pipelineErr))
		j.Logger.Error("Transcription failed", "entry_id", entryID, "error", pipelineErr.Error())
	} else {
		entry.Status = models.EntryStatusTranscribed
		entry.FailureReason = nil
	}

	// Guaranteed write: the terminal state is persisted whether the
	// pipeline succeeded or not.
	if err := j.Store.SaveEntry(ctx, entry); err != nil {
		return Result{OK: false, ID: entryID, Status: entry.Status, Err: fmt.Sprintf("persist entry: %v", err)}
	}

	result := Result{OK: entry.Status == models.EntryStatusTranscribed, ID: entryID, Status: entry.Status}
	if entry.FailureReason != nil {
		result.Err = *entry.FailureReason
	}
	return result
}

// runPipeline produces raw and cleaned transcripts on the entry. Transcript
// fields are populated first-writer-wins so a retry never overwrites a
// prior partial success.
func (j *TranscribeJob) runPipeline(ctx context.Context, entry *models.Entry) error {
	var raw string

	switch {
	case j.Transcriber.RequiresAudio() && entry.AudioURL != nil:
		audioPath, err := j.Fetcher.FetchToFile(ctx, *entry.AudioURL)
		if err != nil {
			return err
		}
		defer os.Remove(audioPath)

		raw, err = j.Transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			return err
		}
	case j.Transcriber.RequiresAudio():
		// Model backend selected but nothing to feed it yet.
		raw = transcribe.StubTranscript
	default:
		var err error
		raw, err = j.Transcriber.Transcribe(ctx, "")
		if err != nil {
			return err
		}
	}

	if entry.TranscriptRaw == nil || *entry.TranscriptRaw == "" {
		entry.TranscriptRaw = &raw
	}

	cleaned := j.Cleaner.Clean(ctx, *entry.TranscriptRaw)
	if entry.TranscriptClean == nil || *entry.TranscriptClean == "" {
		entry.TranscriptClean = &cleaned
	}

	return nil
}

// failureMessage extracts a storable reason from a pipeline error.
func failureMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return msg
}
