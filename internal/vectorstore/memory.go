package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/nikhilbhutani/revisionrag/internal/models"
)

const metaEntryID = "entryId"

var errNoEmbeddingFunc = errors.New("memory store requires precomputed embeddings")

// MemoryStore is an in-process index on chromem-go with one collection per
// namespace. It serves local development and tests.
type MemoryStore struct {
	db *chromem.DB
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: chromem.NewDB()}
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}

func (s *MemoryStore) Insert(ctx context.Context, namespace, entryID string, chunks []InsertChunk, startOrder int) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(namespace, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", namespace, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		order := startOrder + i
		m := c.Metadata
		docs[i] = chromem.Document{
			ID: fmt.Sprintf("%s:%d", entryID, order),
			Metadata: map[string]string{
				metaEntryID:        entryID,
				FilterDocumentID:   m.DocumentID,
				FilterOwnerID:      m.OwnerID,
				FilterCollectionID: m.CollectionID,
				FilterContentKind:  string(m.ContentKind),
				"chunkIndex":       strconv.Itoa(order),
				"totalChunks":      strconv.Itoa(m.TotalChunks),
				"tokenCount":       strconv.Itoa(m.TokenCount),
				"embeddingModel":   m.EmbeddingModel,
			},
			Embedding: c.Embedding,
			Content:   c.Text,
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("insert chunks %d-%d: %w", startOrder, startOrder+len(chunks)-1, err)
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, namespace string, query []float32, limit int, filters []Filter) ([]SearchResult, error) {
	if err := validateSearch(namespace, query, limit, filters); err != nil {
		return nil, err
	}

	col := s.db.GetCollection(namespace, noEmbedding)
	if col == nil {
		return nil, nil
	}
	n := min(limit, col.Count())
	if n == 0 {
		return nil, nil
	}

	var where map[string]string
	if len(filters) > 0 {
		where = make(map[string]string, len(filters))
		for _, f := range filters {
			if prev, ok := where[f.Name]; ok && prev != f.Value {
				return nil, nil
			}
			where[f.Name] = f.Value
		}
	}

	res, err := col.QueryEmbedding(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]SearchResult, len(res))
	for i, r := range res {
		results[i] = SearchResult{
			ChunkID:    r.ID,
			Content:    r.Content,
			ChunkIndex: atoi(r.Metadata["chunkIndex"]),
			Score:      float64(r.Similarity),
			Metadata: ChunkMetadata{
				DocumentID:     r.Metadata[FilterDocumentID],
				OwnerID:        r.Metadata[FilterOwnerID],
				CollectionID:   r.Metadata[FilterCollectionID],
				ContentKind:    models.Kind(r.Metadata[FilterContentKind]),
				TotalChunks:    atoi(r.Metadata["totalChunks"]),
				TokenCount:     atoi(r.Metadata["tokenCount"]),
				EmbeddingModel: r.Metadata["embeddingModel"],
			},
		}
	}
	return results, nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, namespace, entryID string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	col := s.db.GetCollection(namespace, noEmbedding)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{metaEntryID: entryID}, nil); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// Count returns the number of chunks stored under namespace.
func (s *MemoryStore) Count(namespace string) int {
	col := s.db.GetCollection(namespace, noEmbedding)
	if col == nil {
		return 0
	}
	return col.Count()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
