package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agilizei/irorganiza/internal/api/handlers"
	"github.com/agilizei/irorganiza/internal/api/middleware"
	"github.com/agilizei/irorganiza/internal/blobstore"
	"github.com/agilizei/irorganiza/internal/config"
	"github.com/agilizei/irorganiza/internal/extract"
	"github.com/agilizei/irorganiza/internal/jobs"
	"github.com/agilizei/irorganiza/internal/jobs/inmemory"
	"github.com/agilizei/irorganiza/internal/lifecycle"
	"github.com/agilizei/irorganiza/internal/logger"
	"github.com/agilizei/irorganiza/internal/recordstore"
	fsstore "github.com/agilizei/irorganiza/internal/recordstore/firestore"
	"github.com/agilizei/irorganiza/internal/recordstore/memory"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "Path to .env file")
		useMemory = flag.Bool("memory", false, "Use the in-memory record store instead of Firestore")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if !*useMemory {
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid configuration")
		}
	} else if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx := context.Background()

	var records recordstore.Store
	if *useMemory {
		log.Warn().Msg("Using in-memory record store - data is lost on restart")
		records = memory.New()
	} else {
		records, err = fsstore.New(ctx, cfg.ProjectID, cfg.AppID, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create record store")
		}
	}
	defer records.Close()

	blobs := blobstore.New(cfg.BlobDBPath, log)
	defer blobs.Close()

	ctrl := lifecycle.New(records, blobs, log)

	var analyzer extract.Analyzer
	if cfg.GeminiAPIKey != "" {
		analyzer, err = extract.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create analyzer")
		}
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 5, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		scan, ok := job.(*jobs.ScanReceiptJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		if analyzer == nil {
			return fmt.Errorf("extraction is not configured")
		}

		log.Info().
			Str("job_id", scan.JobID).
			Str("mime_type", scan.MimeType).
			Int("bytes", len(scan.Data)).
			Msg("Processing scan job")

		draft, aerr := analyzer.Analyze(ctx, scan.Data, scan.MimeType)
		scan.Draft = &draft
		if aerr != nil {
			// The fallback draft is still usable; the job completes.
			scan.Warning = aerr.Error()
		}
		return nil
	}

	go func() {
		log.Info().Msg("Starting scan worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Scan worker stopped with error")
		}
	}()

	h := handlers.New(ctrl, jobQueue, jobStore, log)
	mux := h.Routes()

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					authExceptHealth([]byte(cfg.JWTSecret), mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the watch stream stays open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job queue shutdown failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// authExceptHealth applies bearer auth to everything but the health check.
func authExceptHealth(secret []byte, next http.Handler) http.Handler {
	authed := middleware.Auth(secret)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}
