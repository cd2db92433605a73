package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind separates study materials from past exam papers; each kind lives in its
// own vector namespace.
type Kind string

const (
	KindMaterials  Kind = "materials"
	KindPastPapers Kind = "past_papers"
)

func (k Kind) Valid() bool {
	return k == KindMaterials || k == KindPastPapers
}

type Document struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OwnerID       string    `json:"owner_id" db:"owner_id"`
	CollectionID  string    `json:"collection_id" db:"collection_id"`
	Title         string    `json:"title" db:"title"`
	Kind          Kind      `json:"kind" db:"kind"`
	FilePath      string    `json:"file_path,omitempty" db:"file_path"`
	FileType      string    `json:"file_type,omitempty" db:"file_type"`
	FileSize      int64     `json:"file_size,omitempty" db:"file_size"`
	ExtractedText *string   `json:"-" db:"extracted_text"`
	Status        string    `json:"status" db:"status"`
	ChunkCount    int       `json:"chunk_count" db:"chunk_count"`
	Error         string    `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasText reports whether extraction produced usable text.
func (d *Document) HasText() bool {
	return d.ExtractedText != nil && *d.ExtractedText != ""
}

type DocumentChunk struct {
	ID             uuid.UUID `json:"id" db:"id"`
	DocumentID     uuid.UUID `json:"document_id" db:"document_id"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	CollectionID   string    `json:"collection_id" db:"collection_id"`
	Namespace      string    `json:"namespace" db:"namespace"`
	ContentKind    Kind      `json:"content_kind" db:"content_kind"`
	ChunkIndex     int       `json:"chunk_index" db:"chunk_index"`
	TotalChunks    int       `json:"total_chunks" db:"total_chunks"`
	Content        string    `json:"content" db:"content"`
	Embedding      []float32 `json:"-" db:"embedding"`
	EmbeddingModel string    `json:"embedding_model" db:"embedding_model"`
	TokenCount     int       `json:"token_count" db:"token_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)
