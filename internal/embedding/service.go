package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/cache"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
)

// QueryCache stores query embeddings between requests.
type QueryCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Options struct {
	Model             string
	Dimensions        int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = "text-embedding-3-small"
	}
	if o.Dimensions <= 0 {
		o.Dimensions = 1536
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// Service is the embedding gateway. It uses the system embedding key, never
// a user's chat credentials.
type Service struct {
	embedder llm.Embedder
	opts     Options
	limiter  *rate.Limiter
	cache    QueryCache
}

// NewService accepts a nil embedder; every call then fails with a
// configuration error before any network traffic.
func NewService(embedder llm.Embedder, opts Options, cache QueryCache) *Service {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Service{
		embedder: embedder,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, opts.Concurrency),
		cache:    cache,
	}
}

func NewFromConfig(cfg config.EmbeddingConfig, cache QueryCache) *Service {
	var embedder llm.Embedder
	if cfg.APIKey != "" {
		embedder = llm.NewOpenAICompatProvider("openai", cfg.APIKey, "", llm.ProviderOptions{BaseURL: cfg.BaseURL})
	}
	return NewService(embedder, Options{
		Model:             cfg.Model,
		Dimensions:        cfg.Dimensions,
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CacheTTL:          cfg.CacheTTL,
	}, cache)
}

func (s *Service) Model() string { return s.opts.Model }

func (s *Service) Dimensions() int { return s.opts.Dimensions }

func (s *Service) BatchSize() int { return s.opts.BatchSize }

// Embed returns one vector per text in input order. Texts are sent in
// batches of BatchSize with up to Concurrency batches in flight; any failed
// batch fails the call.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, apperr.Configuration("No embedding API key configured", "Set EMBEDDING_API_KEY or OPENAI_API_KEY on the server")
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", start/s.opts.BatchSize, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.embedder.GenerateEmbedding(ctx, llm.EmbeddingRequest{
		Model: s.opts.Model,
		Input: batch,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(batch))
	}
	for _, v := range resp.Embeddings {
		if len(v) != s.opts.Dimensions {
			return nil, apperr.Configuration(
				fmt.Sprintf("Embedding model %s returned %d dimensions, expected %d", s.opts.Model, len(v), s.opts.Dimensions),
				"Set EMBEDDING_DIMENSIONS to match both the model and the vector column",
			)
		}
	}
	return resp.Embeddings, nil
}

// EmbedQuery embeds a single search query, consulting the cache first.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := s.cacheKey(text)
	if s.cache != nil {
		var cached []float32
		err := s.cache.Get(ctx, key, &cached)
		if err == nil && len(cached) == s.opts.Dimensions {
			return cached, nil
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			slog.Debug("embedding cache read failed", "error", err)
		}
	}

	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, vecs[0], s.opts.CacheTTL); err != nil {
			slog.Debug("embedding cache write failed", "error", err)
		}
	}
	return vecs[0], nil
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + s.opts.Model + ":" + hex.EncodeToString(sum[:])
}
