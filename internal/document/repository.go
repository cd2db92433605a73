package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

// Repository persists documents. Reads are always scoped to the owner.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, ownerID, collectionID string, limit, offset int) ([]models.Document, error)
	ListByCollection(ctx context.Context, ownerID, collectionID string, kind models.Kind) ([]models.Document, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SaveText(ctx context.Context, id uuid.UUID, text string) error
	Finish(ctx context.Context, id uuid.UUID, status string, chunkCount int, errMsg string) error
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
}

const documentColumns = `id, owner_id, collection_id, title, kind, file_path, file_type, file_size,
	extracted_text, status, chunk_count, error, created_at, updated_at`

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.CollectionID, &d.Title, &d.Kind, &d.FilePath, &d.FileType, &d.FileSize,
		&d.ExtractedText, &d.Status, &d.ChunkCount, &d.Error, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) Create(ctx context.Context, doc *models.Document) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO documents (id, owner_id, collection_id, title, kind, file_path, file_type, file_size, extracted_text, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.OwnerID, doc.CollectionID, doc.Title, doc.Kind, doc.FilePath, doc.FileType, doc.FileSize,
		doc.ExtractedText, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("document", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (r *PgRepository) List(ctx context.Context, ownerID, collectionID string, limit, offset int) ([]models.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE owner_id = $1 AND ($2 = '' OR collection_id = $2)
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		ownerID, collectionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) ListByCollection(ctx context.Context, ownerID, collectionID string, kind models.Kind) ([]models.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE owner_id = $1 AND collection_id = $2 AND kind = $3
		 ORDER BY created_at`,
		ownerID, collectionID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection documents: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]models.Document, error) {
	defer rows.Close()
	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (r *PgRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE documents SET status = $1, updated_at = now() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *PgRepository) SaveText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE documents SET extracted_text = $1, updated_at = now() WHERE id = $2", text, id)
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	return nil
}

func (r *PgRepository) Finish(ctx context.Context, id uuid.UUID, status string, chunkCount int, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, chunk_count = $2, error = $3, updated_at = now() WHERE id = $4`,
		status, chunkCount, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish document: %w", err)
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("document", id.String())
	}
	return nil
}
