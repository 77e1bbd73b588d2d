// Package main is the entrypoint for the scribeline API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mwildeboer/scribeline/internal/analysis"
	"github.com/mwildeboer/scribeline/internal/api"
	"github.com/mwildeboer/scribeline/internal/api/handler"
	"github.com/mwildeboer/scribeline/internal/cache"
	"github.com/mwildeboer/scribeline/internal/config"
	"github.com/mwildeboer/scribeline/internal/jobs"
	"github.com/mwildeboer/scribeline/internal/llm"
	"github.com/mwildeboer/scribeline/internal/namedetect"
	"github.com/mwildeboer/scribeline/internal/pipeline"
	"github.com/mwildeboer/scribeline/internal/resultlog"
	"github.com/mwildeboer/scribeline/internal/transcribe"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"data_dir", cfg.Paths.Root,
		"result_log", cfg.ResultLog.Driver,
		"llm_provider", cfg.LLM.Provider,
		"workers", cfg.Workers.PoolSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Paths.Root, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// 2. Open the result log (sqlite or postgres)
	results, err := resultlog.New(ctx, cfg.ResultLog, cfg.Paths, logger)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	defer results.Close()
	slog.Info("result log ready", "driver", cfg.ResultLog.Driver)

	// 3. Optional redis status mirror
	var mirror cache.StatusMirror = cache.NoopMirror{}
	if cfg.Redis.URL != "" {
		redisMirror, err := cache.NewRedisMirror(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis mirror: %w", err)
		}
		defer redisMirror.Close()

		if err := redisMirror.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		mirror = redisMirror
		slog.Info("redis status mirror connected")
	}

	// 4. LLM provider and stage components
	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	slog.Info("LLM provider initialized", "provider", provider.Name())

	llmRunner := llm.NewRunner(provider, logger)
	processor := transcribe.NewProcessor(cfg.Audio, logger)
	detector := namedetect.NewDetector(llmRunner, logger)
	analyzer := analysis.NewAnalyzer(llmRunner, cfg.LLM, logger)

	// 5. Job store and pipeline runner
	store := jobs.NewStore()
	runner := pipeline.NewRunner(store, cfg, processor, detector, analyzer, results, mirror, logger)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		HealthHandler:       handler.NewHealthHandler(results, mirror, provider.Name()),
		SubmitHandler:       handler.NewSubmitHandler(store, runner, cfg),
		ListJobsHandler:     handler.NewListJobsHandler(store),
		GetJobHandler:       handler.NewGetJobHandler(store),
		StopJobHandler:      handler.NewStopJobHandler(store),
		GetReviewHandler:    handler.NewGetReviewHandler(store, cfg),
		SubmitReviewHandler: handler.NewSubmitReviewHandler(store, runner),
	}
	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Let in-flight pipeline phases finish so their result rows get written.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
