package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/vectorstore"
	"github.com/nikhilbhutani/revisionrag/pkg/chunker"
)

// ErrNoChunks is returned when the text produces no non-blank chunks.
var ErrNoChunks = errors.New("no chunks generated from content")

// Embedder is the part of the embedding gateway the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	BatchSize() int
}

type IngestRequest struct {
	DocumentID   string
	OwnerID      string
	CollectionID string
	Kind         models.Kind
	Text         string
}

type IngestResult struct {
	TotalChunks  int
	StoredChunks int
}

// Indexer chunks, embeds and stores document text.
type Indexer struct {
	store       vectorstore.VectorStore
	embedder    Embedder
	chunkOpts   chunker.Options
	concurrency int
}

func NewIndexer(store vectorstore.VectorStore, embedder Embedder, chunkOpts chunker.Options, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{store: store, embedder: embedder, chunkOpts: chunkOpts, concurrency: concurrency}
}

// Ingest embeds and inserts the chunks of req.Text in batches. Batches run
// concurrently and carry their own chunk indices. On failure the batches
// already stored stay in place and StoredChunks reports how many there are.
func (ix *Indexer) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	chunks := chunker.Chunk(req.Text, ix.chunkOpts)
	res := &IngestResult{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return res, ErrNoChunks
	}

	namespace := vectorstore.Namespace(req.OwnerID, req.Kind)
	batchSize := max(ix.embedder.BatchSize(), 1)
	var stored atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for start := 0; start < len(chunks); start += batchSize {
		batch := chunks[start:min(start+batchSize, len(chunks))]
		g.Go(func() error {
			vecs, err := ix.embedder.Embed(gctx, chunker.Texts(batch))
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, start+len(batch)-1, err)
			}

			inserts := make([]vectorstore.InsertChunk, len(batch))
			for i, c := range batch {
				inserts[i] = vectorstore.InsertChunk{
					Text:      c.Content,
					Embedding: vecs[i],
					Metadata: vectorstore.ChunkMetadata{
						DocumentID:     req.DocumentID,
						OwnerID:        req.OwnerID,
						CollectionID:   req.CollectionID,
						ContentKind:    req.Kind,
						TotalChunks:    len(chunks),
						TokenCount:     c.TokenCount,
						EmbeddingModel: ix.embedder.Model(),
					},
				}
			}

			// An embedded batch is stored even when a sibling batch has failed.
			if err := ix.store.Insert(ctx, namespace, req.DocumentID, inserts, start); err != nil {
				return fmt.Errorf("store chunks %d-%d: %w", start, start+len(batch)-1, err)
			}
			stored.Add(int64(len(batch)))
			return nil
		})
	}

	err := g.Wait()
	res.StoredChunks = int(stored.Load())
	if err != nil {
		slog.Warn("ingest incomplete",
			"document_id", req.DocumentID,
			"stored", res.StoredChunks,
			"total", res.TotalChunks,
			"error", err,
		)
		return res, err
	}
	return res, nil
}

// Remove deletes every stored chunk of a document.
func (ix *Indexer) Remove(ctx context.Context, ownerID string, kind models.Kind, documentID string) error {
	return ix.store.DeleteEntry(ctx, vectorstore.Namespace(ownerID, kind), documentID)
}
