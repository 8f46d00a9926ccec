package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Ahaxin/myday/internal/auth"
	"github.com/Ahaxin/myday/internal/cleanup"
	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/database"
	"github.com/Ahaxin/myday/internal/entries"
	"github.com/Ahaxin/myday/internal/exports"
	"github.com/Ahaxin/myday/internal/health"
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

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

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
	cleaner := cleanup.NewCleaner(cfg)

	transcribeJob := &worker.TranscribeJob{
		Store:       st,
		Fetcher:     fetcher,
		Transcriber: transcriber,
		Cleaner:     cleaner,
		Logger:      logger,
	}
	exportJob := &worker.ExportJob{
		Store:   st,
		Storage: storageBackend,
		Fetcher: fetcher,
		Logger:  logger,
	}

	var dispatcher *worker.Dispatcher
	if cfg.ExecMode == config.ExecModeAsync {
		if err := pingBroker(cfg.RedisURL); err != nil {
			log.Fatalf("broker unreachable: %v", err)
		}
		dispatcher, err = worker.NewAsyncDispatcher(cfg.RedisURL, logger)
		if err != nil {
			log.Fatalf("dispatcher: %v", err)
		}
		defer dispatcher.Close()

		stopWorker, err := worker.Start(cfg.RedisURL, logger, transcribeJob, exportJob)
		if err != nil {
			log.Fatalf("worker: %v", err)
		}
		defer stopWorker()
	} else {
		dispatcher = worker.NewSyncDispatcher(transcribeJob, exportJob, logger)
	}

	entryHandlers := &entries.Handlers{Cfg: cfg, Store: st, Storage: storageBackend, Dispatcher: dispatcher}
	exportHandlers := &exports.Handlers{Store: st, Dispatcher: dispatcher}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.GET("/health", gin.WrapF(health.Handler))
	router.POST("/v1/auth/email", auth.EmailAuthHandler(cfg, st))

	authed := router.Group("/v1", auth.RequireAuth(cfg.JWTSecret, st))
	{
		authed.POST("/entries", entryHandlers.Create)
		authed.GET("/entries", entryHandlers.List)
		authed.GET("/entries/:id", entryHandlers.Get)
		authed.POST("/entries/:id/finalize", entryHandlers.Finalize)
		authed.POST("/entries/:id/transcribe", entryHandlers.Transcribe)

		authed.POST("/exports", exportHandlers.Create)
		authed.GET("/exports", exportHandlers.List)
		authed.GET("/exports/:id", exportHandlers.Get)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "exec_mode", cfg.ExecMode,
			"storage_backend", cfg.StorageBackend, "transcription_backend", cfg.TranscriptionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err.Error())
	}
}

// pingBroker verifies the task broker is reachable before async mode comes
// up; enqueue failures after startup are still swallowed by the dispatcher.
func pingBroker(redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
