// Package app wires the services shared by the API server and the worker.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/revisionrag/internal/cache"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/database"
	"github.com/nikhilbhutani/revisionrag/internal/document"
	"github.com/nikhilbhutani/revisionrag/internal/embedding"
	"github.com/nikhilbhutani/revisionrag/internal/queue"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
	"github.com/nikhilbhutani/revisionrag/internal/storage"
	"github.com/nikhilbhutani/revisionrag/internal/vectorstore"
	"github.com/nikhilbhutani/revisionrag/pkg/chunker"
	"github.com/nikhilbhutani/revisionrag/pkg/tokenizer"
)

type App struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Cache     *cache.Cache
	Queue     *queue.Client
	Store     vectorstore.VectorStore
	Embedder  *embedding.Service
	Indexer   *rag.Indexer
	Documents *document.Service
	DocRepo   *document.PgRepository
	Assembler *rag.Assembler
}

// New connects to Postgres and Redis, applies migrations and builds the
// document pipeline. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := tokenizer.Init(cfg.RAG.TokenEncoding); err != nil {
		slog.Warn("tiktoken unavailable, using estimated token counts", "error", err)
	}

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db}

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, query embeddings will not be cached", "error", err)
	}
	a.Cache = cache.NewCache(a.Redis, "revisionrag")

	switch cfg.VectorStore.Backend {
	case "memory":
		a.Store = vectorstore.NewMemoryStore()
	default:
		pg := vectorstore.NewPgVectorStore(db)
		if err := pg.VerifyDimension(ctx, cfg.Embedding.Dimensions); err != nil {
			a.Close()
			return nil, err
		}
		a.Store = pg
	}

	blobs, err := newStorage(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Embedder = embedding.NewFromConfig(cfg.Embedding, a.Cache)
	a.Indexer = rag.NewIndexer(a.Store, a.Embedder, chunker.Options{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	}, cfg.Embedding.Concurrency)

	a.DocRepo = document.NewPgRepository(db)
	var enqueuer document.Enqueuer
	a.Queue, enqueuer = retryQueue(cfg)
	a.Documents = document.NewService(a.DocRepo, blobs, a.Indexer, enqueuer)
	a.Assembler = rag.NewAssembler(a.Store, a.Embedder, a.DocRepo, rag.AssemblerOptions{
		DocPrefixChars:  cfg.RAG.DocPrefixChars,
		MaxContextChars: cfg.RAG.MaxContextChars,
	})

	slog.Info("pipeline ready",
		"vector_store", cfg.VectorStore.Backend,
		"storage", cfg.Storage.Backend,
		"embedding_model", a.Embedder.Model(),
	)
	return a, nil
}

// retryQueue returns the asynq client for reprocess tasks. An in-process
// vector store is invisible to the worker, so retries then run inline and
// no client is created.
func retryQueue(cfg *config.Config) (*queue.Client, document.Enqueuer) {
	if cfg.VectorStore.InProcess() {
		slog.Info("in-process vector store, document retries run inline")
		return nil, nil
	}
	c := queue.NewClient(cfg.Redis)
	return c, c
}

func newStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "local":
		s, err := storage.NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "supabase":
		return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			slog.Warn("close queue client", "error", err)
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
