package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/money-mirror/internal/api/handlers"
	"github.com/dvloznov/money-mirror/internal/api/middleware"
	"github.com/dvloznov/money-mirror/internal/app"
	"github.com/dvloznov/money-mirror/internal/config"
	"github.com/dvloznov/money-mirror/internal/jobs"
	"github.com/dvloznov/money-mirror/internal/jobs/inmemory"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/pipeline"
	"github.com/dvloznov/money-mirror/internal/security"
)

func main() {
	cfg, err := config.Load()
	log := logger.NewWithLevel("info")
	if cfg != nil {
		log = logger.NewWithLevel(cfg.LogLevel)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	files, err := app.OpenFileStore(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create file store")
	}

	svc, err := app.NewServices(ctx, cfg, repo, files)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	tokens := security.NewTokenValidator(cfg.JWTSecret)
	if !tokens.Enabled() {
		log.Warn().Msg("JWT_SECRET is not set - request authentication is disabled")
	}

	// Async processing
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, inmemory.DefaultWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.ProcessJob) (*pipeline.Result, error) {
		jobLog := logger.FromContext(ctx)
		jobLog.Info().
			Str("institution", string(job.Institution)).
			Int("files", len(job.FilePaths)).
			Int("retry", job.RetryCount).
			Msg("Processing job")
		return svc.Orchestrator.Run(ctx, job.Request())
	}
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	processHandler := handlers.NewProcessHandler(svc.Orchestrator, jobQueue, tokens)
	categoriesHandler := handlers.NewCategoriesHandler(repo, svc.Taxonomy)
	dashboardHandler := handlers.NewDashboardHandler(repo)
	jobsHandler := handlers.NewJobsHandler(jobStore)

	auth := middleware.Auth(tokens)
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handlers.Health)

	// /process-data checks the body token itself.
	mux.HandleFunc("/process-data", method(http.MethodPost, processHandler.Process))
	mux.HandleFunc("/process-data/async", method(http.MethodPost, processHandler.ProcessAsync))

	mux.Handle("/init-categories", auth(method(http.MethodPost, categoriesHandler.InitCategories)))
	mux.Handle("/api/categories", auth(method(http.MethodGet, categoriesHandler.ListCategories)))
	mux.Handle("/api/dashboard", auth(method(http.MethodGet, dashboardHandler.ListRecords)))
	mux.Handle("/api/jobs", auth(method(http.MethodGet, jobsHandler.ListJobs)))
	mux.Handle("/status/", auth(method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/status/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})))

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Processing a batch of statements can take minutes of model calls.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.StoreBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// method restricts h to one HTTP method.
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}
