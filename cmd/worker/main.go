// Standalone worker process. Runs the transcription and export job
// handlers against the shared broker and database; scale horizontally by
// running more copies.
package main

import (
	"log"

	"github.com/Ahaxin/myday/internal/cleanup"
	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/database"
	"github.com/Ahaxin/myday/internal/storage"
	"github.com/Ahaxin/myday/internal/store"
	"github.com/Ahaxin/myday/internal/transcribe"
	"github.com/Ahaxin/myday/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	defer database.Close(db)

	st := store.NewGormStore(db)

	storageBackend, err := storage.NewBackend(cfg)
	if err != nil {
		log.Fatalf("storage backend: %v", err)
	}
	transcriber, err := transcribe.NewBackend(cfg)
	if err != nil {
		log.Fatalf("transcription backend: %v", err)
	}

	fetcher := storage.NewFetcher(cfg)

	transcribeJob := &worker.TranscribeJob{
		Store:       st,
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Cleaner:     cleanup.NewCleaner(cfg),
		Logger:      logger,
	}
	exportJob := &worker.ExportJob{
		Store:   st,
		Storage: storageBackend,
		Fetcher: fetcher,
		Logger:  logger,
	}

	// Run blocks and handles its own signal interception
	if err := worker.Run(cfg.RedisURL, logger, transcribeJob, exportJob); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
