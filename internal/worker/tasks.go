package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskTranscribeEntry = "entry:transcribe"
	TaskGenerateExport  = "export:generate"
)

// TranscribePayload is the wire payload for entry:transcribe tasks.
type TranscribePayload struct {
	EntryID          uint   `json:"entry_id"`
	IdempotencyToken string `json:"idempotency_token,omitempty"`
}

// ExportPayload is the wire payload for export:generate tasks.
type ExportPayload struct {
	ExportID uint `json:"export_id"`
}

// enqueuer is the slice of asynq.Client the dispatcher needs.
type enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher submits jobs for execution. In sync mode the job runs inline
// and the caller blocks until completion; in async mode the job is handed
// to the task queue for out-of-process execution.
//
// Async enqueue failures are swallowed: the foreground request path stays
// available when the broker is degraded, the record stays in processing,
// and the explicit re-enqueue operation is the recovery path. The trade is
// deliberate — broker health never blocks the API.
type Dispatcher struct {
	client     enqueuer
	transcribe *TranscribeJob
	export     *ExportJob
	logger     *slog.Logger
}

// NewSyncDispatcher builds a dispatcher that runs jobs inline. Used for
// deterministic testing and single-process deployments.
func NewSyncDispatcher(transcribe *TranscribeJob, export *ExportJob, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{transcribe: transcribe, export: export, logger: logger}
}

// NewAsyncDispatcher builds a dispatcher that enqueues tasks to the broker
// behind redisURL.
func NewAsyncDispatcher(redisURL string, logger *slog.Logger) (*Dispatcher, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Dispatcher{client: asynq.NewClient(opt), logger: logger}, nil
}

// Close releases the broker connection, if any.
func (d *Dispatcher) Close() error {
	if c, ok := d.client.(*asynq.Client); ok {
		return c.Close()
	}
	return nil
}

// SubmitTranscribe submits a transcription job for the entry.
func (d *Dispatcher) SubmitTranscribe(ctx context.Context, entryID uint, token string) {
	if d.client == nil {
		// A started job runs to completion; the submitting request's
		// cancellation must not abort it mid-pipeline.
		result := d.transcribe.Run(context.WithoutCancel(ctx), entryID, token)
		d.logger.Info("Ran transcription inline", "entry_id", entryID, "ok", result.OK, "status", result.Status)
		return
	}

	payload, err := json.Marshal(TranscribePayload{EntryID: entryID, IdempotencyToken: token})
	if err != nil {
		d.logger.Warn("Failed to marshal transcription payload", "entry_id", entryID, "error", err.Error())
		return
	}
	task := asynq.NewTask(
		TaskTranscribeEntry,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if _, err := d.client.Enqueue(task); err != nil {
		d.logger.Warn("Failed to enqueue transcription task; entry stays processing",
			"entry_id", entryID, "error", err.Error())
	}
}

// SubmitExport submits an export job for the request.
func (d *Dispatcher) SubmitExport(ctx context.Context, exportID uint) {
	if d.client == nil {
		result := d.export.Run(context.WithoutCancel(ctx), exportID)
		d.logger.Info("Ran export inline", "export_id", exportID, "ok", result.OK, "status", result.Status)
		return
	}

	payload, err := json.Marshal(ExportPayload{ExportID: exportID})
	if err != nil {
		d.logger.Warn("Failed to marshal export payload", "export_id", exportID, "error", err.Error())
		return
	}
	task := asynq.NewTask(
		TaskGenerateExport,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if _, err := d.client.Enqueue(task); err != nil {
		d.logger.Warn("Failed to enqueue export task; request stays processing",
			"export_id", exportID, "error", err.Error())
	}
}
