package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/revisionrag/internal/api"
	"github.com/nikhilbhutani/revisionrag/internal/api/handlers"
	"github.com/nikhilbhutani/revisionrag/internal/app"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/credentials"
	"github.com/nikhilbhutani/revisionrag/internal/generation"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/usage"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	settings := credentials.NewPgSettingsStore(a.DB)
	usageSvc := usage.NewService(a.DB)
	orchestrator := generation.NewOrchestrator(
		generation.DefaultFactory(llm.ProviderOptions{Timeout: cfg.LLM.Timeout}),
		usageSvc,
		generation.OrchestratorOptions{MaxTokens: cfg.LLM.MaxTokens, Temperature: cfg.LLM.Temperature},
	)
	genSvc := generation.NewService(
		credentials.NewResolver(settings, cfg.LLM),
		a.Assembler,
		orchestrator,
		generation.ServiceOptions{QueryLimit: cfg.RAG.SearchLimit, MaxContentChars: cfg.RAG.MaxContextChars},
	)

	router := api.NewRouter(cfg, api.Services{
		Documents:  a.Documents,
		Generation: genSvc,
		Assembler:  a.Assembler,
		Usage:      usageSvc,
		Settings:   settings,
		Health: map[string]handlers.Pinger{
			"database": a.DB,
			"redis":    a.Cache,
		},
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
