package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Insert(ctx context.Context, namespace, entryID string, chunks []InsertChunk, startOrder int) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	docID, err := uuid.Parse(entryID)
	if err != nil {
		return apperr.Validation("entry_id", "invalid document id %q", entryID)
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, c := range chunks {
		m := c.Metadata
		batch.Queue(
			`INSERT INTO document_chunks
			   (document_id, owner_id, collection_id, namespace, content_kind, chunk_index,
			    total_chunks, content, embedding, embedding_model, token_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			docID, m.OwnerID, m.CollectionID, namespace, string(m.ContentKind), startOrder+i,
			m.TotalChunks, c.Text, pgvector.NewVector(c.Embedding), m.EmbeddingModel, m.TokenCount,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks %d-%d: %w", startOrder, startOrder+len(chunks)-1, err)
	}
	return tx.Commit(ctx)
}

func (s *PgVectorStore) Search(ctx context.Context, namespace string, query []float32, limit int, filters []Filter) ([]SearchResult, error) {
	if err := validateSearch(namespace, query, limit, filters); err != nil {
		return nil, err
	}

	sql, args, err := buildSearchQuery(namespace, pgvector.NewVector(query), limit, filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r     SearchResult
			id    uuid.UUID
			docID uuid.UUID
			kind  string
		)
		if err := rows.Scan(&id, &docID, &r.Metadata.OwnerID, &r.Metadata.CollectionID, &kind,
			&r.ChunkIndex, &r.Metadata.TotalChunks, &r.Content, &r.Metadata.TokenCount,
			&r.Metadata.EmbeddingModel, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ChunkID = id.String()
		r.Metadata.DocumentID = docID.String()
		r.Metadata.ContentKind = models.Kind(kind)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// buildSearchQuery pushes the namespace and every filter into the WHERE
// clause so the index only ranks rows in scope.
func buildSearchQuery(namespace string, query pgvector.Vector, limit int, filters []Filter) (string, []any, error) {
	args := []any{query, namespace}
	conds := []string{"namespace = $2"}

	for _, f := range filters {
		col, ok := filterColumns[f.Name]
		if !ok {
			return "", nil, apperr.Validation("filter", "unknown filter %q", f.Name)
		}
		var val any = f.Value
		if f.Name == FilterDocumentID {
			id, err := uuid.Parse(f.Value)
			if err != nil {
				return "", nil, apperr.Validation("filter", "invalid document id %q", f.Value)
			}
			val = id
		}
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT id, document_id, owner_id, collection_id, content_kind, chunk_index, total_chunks,
		        content, token_count, embedding_model, 1 - (embedding <=> $1) AS score
		 FROM document_chunks
		 WHERE %s
		 ORDER BY embedding <=> $1
		 LIMIT $%d`,
		strings.Join(conds, " AND "), len(args),
	)
	return sql, args, nil
}

func (s *PgVectorStore) DeleteEntry(ctx context.Context, namespace, entryID string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	docID, err := uuid.Parse(entryID)
	if err != nil {
		return apperr.Validation("entry_id", "invalid document id %q", entryID)
	}

	_, err = s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE namespace = $1 AND document_id = $2",
		namespace, docID,
	)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// VerifyDimension compares the declared width of document_chunks.embedding
// with the configured embedding size.
func (s *PgVectorStore) VerifyDimension(ctx context.Context, want int) error {
	var got int
	err := s.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`,
	).Scan(&got)
	if err != nil {
		return fmt.Errorf("read embedding column width: %w", err)
	}
	if got != want {
		return apperr.Configuration(
			fmt.Sprintf("document_chunks.embedding is vector(%d) but EMBEDDING_DIMENSIONS is %d", got, want),
			"Migrate the column or change the embedding model",
		)
	}
	return nil
}
