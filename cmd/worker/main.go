package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/revisionrag/internal/app"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/queue"
	"github.com/nikhilbhutani/revisionrag/internal/queue/workers"
)

func main() {
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
	if cfg.VectorStore.InProcess() {
		slog.Error("the worker needs a shared vector store; retries run inside the API server", "vector_store", cfg.VectorStore.Backend)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	documentWorker := workers.NewDocumentWorker(a.Documents)
	registry.Register(queue.TypeDocumentReprocess, asynq.HandlerFunc(documentWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
