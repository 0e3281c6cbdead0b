package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rxcheck/coverage-api/config"
	"github.com/rxcheck/coverage-api/coverage"
	"github.com/rxcheck/coverage-api/formulary"
	"github.com/rxcheck/coverage-api/llm"
	"github.com/rxcheck/coverage-api/logging"
	"github.com/rxcheck/coverage-api/normalizer"
	"github.com/rxcheck/coverage-api/research"
	"github.com/rxcheck/coverage-api/resolver"
	"github.com/rxcheck/coverage-api/scheduler"
	"github.com/rxcheck/coverage-api/server"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir, cfg.LogLevel)
	defer logging.DefaultLoggingService.Close()

	// Formulary index. A failed initial load is not fatal: the service runs
	// degraded on the remote agent alone and reports it via /health.
	index := formulary.NewIndex()
	if err := index.Load(cfg.FormularyDir); err != nil {
		logging.Warn("Initial formulary load failed, running degraded",
			"dir", cfg.FormularyDir, "error", err)
	} else {
		logging.Info("Formulary loaded",
			"plan_count", index.PlanCount(), "drug_count", index.DrugCount())
	}

	provider, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		logging.Warn("Text-generation backend unavailable, using heuristic fallbacks", "error", err)
		provider = llm.NewUnavailableProvider("no backend configured")
	}

	norm := normalizer.New(provider, cfg.NormalizerTimeout)
	remote := resolver.New(cfg.ToolhouseURL, cfg.ToolhouseAPIKey, cfg.ResolverTimeout)
	researcher := research.New(provider, cfg.ResearchTimeout)
	orchestrator := coverage.New(norm, index, remote, researcher)

	sched := scheduler.NewScheduler(index, cfg.FormularyDir)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, orchestrator, researcher, index)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
