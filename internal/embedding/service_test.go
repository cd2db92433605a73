package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/cache"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
)

// fakeEmbedder encodes each text's numeric suffix into the first dimension.
type fakeEmbedder struct {
	dims   int
	calls  atomic.Int32
	failOn string

	mu      sync.Mutex
	batches [][]string
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.batches = append(f.batches, req.Input)
	f.mu.Unlock()

	out := make([][]float32, len(req.Input))
	for i, text := range req.Input {
		if text == f.failOn {
			return nil, &apperr.ProviderError{Kind: apperr.RateLimited, Provider: "openai", Status: 429}
		}
		var n int
		_, _ = fmt.Sscanf(text, "text-%d", &n)
		v := make([]float32, f.dims)
		v[0] = float32(n)
		out[i] = v
	}
	return &llm.EmbeddingResponse{Embeddings: out, Model: req.Model}, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%d", i)
	}
	return out
}

func TestEmbed_BatchesPreserveOrder(t *testing.T) {
	f := &fakeEmbedder{dims: 4}
	svc := NewService(f, Options{Dimensions: 4, BatchSize: 10, Concurrency: 3}, nil)

	vecs, err := svc.Embed(context.Background(), texts(25))
	require.NoError(t, err)

	require.Len(t, vecs, 25)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	assert.EqualValues(t, 3, f.calls.Load())
	for _, b := range f.batches {
		assert.LessOrEqual(t, len(b), 10)
	}
}

func TestEmbed_Empty(t *testing.T) {
	svc := NewService(nil, Options{}, nil)
	vecs, err := svc.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_MissingKey(t *testing.T) {
	svc := NewService(nil, Options{}, nil)
	_, err := svc.Embed(context.Background(), []string{"photosynthesis"})

	var cfgErr *apperr.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	svc := NewService(&fakeEmbedder{dims: 3}, Options{Dimensions: 1536}, nil)
	_, err := svc.Embed(context.Background(), []string{"text-1"})

	var cfgErr *apperr.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "3 dimensions")
}

func TestEmbed_BatchFailureFailsCall(t *testing.T) {
	f := &fakeEmbedder{dims: 2, failOn: "text-13"}
	svc := NewService(f, Options{Dimensions: 2, BatchSize: 5, Concurrency: 1}, nil)

	_, err := svc.Embed(context.Background(), texts(20))
	require.Error(t, err)
	assert.True(t, apperr.IsProviderKind(err, apperr.RateLimited))
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

func (m *mapCache) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	*(dest.(*[]float32)) = v
	return nil
}

func (m *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]float32)
	return nil
}

func TestEmbedQuery_UsesCache(t *testing.T) {
	f := &fakeEmbedder{dims: 2}
	c := &mapCache{data: map[string][]float32{}}
	svc := NewService(f, Options{Dimensions: 2}, c)
	ctx := context.Background()

	first, err := svc.EmbedQuery(ctx, "text-7")
	require.NoError(t, err)
	second, err := svc.EmbedQuery(ctx, "text-7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Len(t, c.data, 1)
}
