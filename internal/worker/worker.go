package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Start starts the worker in non-blocking mode and returns a stop function
// so the caller can coordinate shutdown. Jobs execute on this process's
// worker pool; multiple worker processes may run concurrently and
// coordinate only through the store.
func Start(redisURL string, logger *slog.Logger, transcribe *TranscribeJob, export *ExportJob) (stop func(), err error) {
	srv, mux, err := newServer(redisURL, logger, transcribe, export)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

// Run starts the worker server and blocks until a shutdown signal.
// Use this for standalone worker mode.
func Run(redisURL string, logger *slog.Logger, transcribe *TranscribeJob, export *ExportJob) error {
	srv, mux, err := newServer(redisURL, logger, transcribe, export)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

func newServer(redisURL string, logger *slog.Logger, transcribe *TranscribeJob, export *ExportJob) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTranscribeEntry, handleTranscribeEntry(logger, transcribe))
	mux.HandleFunc(TaskGenerateExport, handleGenerateExport(logger, export))

	logger.Info("Worker starting", "concurrency", 5, "redis", redisURL)
	return srv, mux, nil
}

// handleTranscribeEntry unpacks entry:transcribe payloads and runs the
// transcription job. The job persists terminal outcomes itself, so only
// infrastructure errors (bad payload, missing entry, failed persist) reach
// asynq's retry machinery.
func handleTranscribeEntry(logger *slog.Logger, job *TranscribeJob) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload TranscribePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		result := job.Run(ctx, payload.EntryID, payload.IdempotencyToken)
		if result.Err == "not_found" {
			return fmt.Errorf("entry not found: %w", asynq.SkipRetry)
		}
		if result.Status == "" && result.Err != "" {
			// Entry load or persist failed before a terminal state was
			// recorded; let the queue retry.
			return fmt.Errorf("transcription job: %s", result.Err)
		}

		logger.Info("Transcription task finished",
			"entry_id", payload.EntryID,
			"ok", result.OK,
			"status", result.Status,
			"idempotent", result.Idempotent,
		)
		return nil
	}
}

func handleGenerateExport(logger *slog.Logger, job *ExportJob) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload ExportPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		result := job.Run(ctx, payload.ExportID)
		if result.Err == "not_found" {
			return fmt.Errorf("export not found: %w", asynq.SkipRetry)
		}
		if result.Status == "" && result.Err != "" {
			return fmt.Errorf("export job: %s", result.Err)
		}

		logger.Info("Export task finished",
			"export_id", payload.ExportID,
			"ok", result.OK,
			"status", result.Status,
		)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
