package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
	"github.com/nikhilbhutani/revisionrag/internal/storage"
	"github.com/nikhilbhutani/revisionrag/pkg/textextract"
)

// MaxUploadBytes bounds a single uploaded file.
const MaxUploadBytes = 25 << 20

// Indexer is the ingestion side of the RAG pipeline.
type Indexer interface {
	Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error)
	Remove(ctx context.Context, ownerID string, kind models.Kind, documentID string) error
}

// Enqueuer schedules a reprocess on the worker. A nil Enqueuer makes Retry
// reprocess inline.
type Enqueuer interface {
	EnqueueDocumentReprocess(ctx context.Context, documentID uuid.UUID, ownerID string) error
}

type Service struct {
	repo      Repository
	storage   storage.Storage
	extractor TextExtractor
	indexer   Indexer
	queue     Enqueuer
}

func NewService(repo Repository, store storage.Storage, indexer Indexer, queue Enqueuer) *Service {
	return &Service{
		repo:      repo,
		storage:   store,
		extractor: NewTextExtractor(),
		indexer:   indexer,
		queue:     queue,
	}
}

// UploadRequest carries either a file (FileName and Data) or pasted Text.
type UploadRequest struct {
	OwnerID      string
	CollectionID string
	Title        string
	Kind         models.Kind
	FileName     string
	ContentType  string
	Data         []byte
	Text         string
}

func (r *UploadRequest) validate() (fileType string, err error) {
	if r.OwnerID == "" {
		return "", apperr.Validation("owner_id", "is required")
	}
	if strings.TrimSpace(r.CollectionID) == "" {
		return "", apperr.Validation("collection_id", "is required")
	}
	if r.Kind == "" {
		r.Kind = models.KindMaterials
	}
	if !r.Kind.Valid() {
		return "", apperr.Validation("kind", "must be %q or %q", models.KindMaterials, models.KindPastPapers)
	}

	if len(r.Data) == 0 {
		if strings.TrimSpace(r.Text) == "" {
			return "", apperr.Validation("file", "a file or text is required")
		}
		if r.Title == "" {
			r.Title = "Pasted text"
		}
		return ".txt", nil
	}

	if len(r.Data) > MaxUploadBytes {
		return "", apperr.Validation("file", "must be at most %d MB", MaxUploadBytes>>20)
	}
	fileType = textextract.TypeFromName(r.FileName)
	if fileType == "" {
		fileType = textextract.Normalize(r.ContentType)
	}
	if fileType == "" {
		return "", apperr.Validation("file", "unsupported file type (supported: %s)", strings.Join(textextract.SupportedTypes(), ", "))
	}
	if r.Title == "" {
		r.Title = strings.TrimSuffix(path.Base(r.FileName), path.Ext(r.FileName))
	}
	return fileType, nil
}

// Upload stores the file, records the document and processes it before
// returning. When processing fails the document is returned in the failed
// state together with the error.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	fileType, err := req.validate()
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		CollectionID: req.CollectionID,
		Title:        req.Title,
		Kind:         req.Kind,
		FileType:     fileType,
		Status:       models.DocStatusPending,
	}

	if len(req.Data) > 0 {
		doc.FilePath = objectPath(req.OwnerID, doc.ID, req.FileName, fileType)
		doc.FileSize = int64(len(req.Data))
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.storage.Put(ctx, doc.FilePath, bytes.NewReader(req.Data), contentType); err != nil {
			return nil, fmt.Errorf("upload to storage: %w", err)
		}
	} else {
		text := strings.TrimSpace(req.Text)
		doc.ExtractedText = &text
		doc.FileSize = int64(len(text))
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if doc.FilePath != "" {
			if derr := s.storage.Delete(ctx, doc.FilePath); derr != nil {
				slog.Warn("failed to remove orphaned upload", "path", doc.FilePath, "error", derr)
			}
		}
		return nil, err
	}

	slog.Info("document uploaded", "document_id", doc.ID, "owner_id", doc.OwnerID, "collection_id", doc.CollectionID, "file_type", fileType)
	return doc, s.process(ctx, doc, req.Data)
}

func objectPath(ownerID string, id uuid.UUID, fileName, fileType string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload" + fileType
	}
	return fmt.Sprintf("%s/%s/%s", ownerID, id, name)
}

// process extracts (unless text is already stored), chunks, embeds and
// indexes doc, then records the outcome. doc is updated in place.
func (s *Service) process(ctx context.Context, doc *models.Document, data []byte) error {
	// Status writes must land even if the request is cancelled mid-way.
	statusCtx := context.WithoutCancel(ctx)

	if err := s.repo.SetStatus(statusCtx, doc.ID, models.DocStatusProcessing); err != nil {
		return err
	}
	doc.Status = models.DocStatusProcessing

	if !doc.HasText() {
		text, err := s.extract(ctx, doc, data)
		if err != nil {
			return s.fail(statusCtx, doc, 0, err)
		}
		if err := s.repo.SaveText(statusCtx, doc.ID, text); err != nil {
			return s.fail(statusCtx, doc, 0, err)
		}
		doc.ExtractedText = &text
	}

	res, err := s.indexer.Ingest(ctx, rag.IngestRequest{
		DocumentID:   doc.ID.String(),
		OwnerID:      doc.OwnerID,
		CollectionID: doc.CollectionID,
		Kind:         doc.Kind,
		Text:         *doc.ExtractedText,
	})
	if err != nil {
		stored := 0
		if res != nil {
			stored = res.StoredChunks
		}
		return s.fail(statusCtx, doc, stored, err)
	}

	if err := s.repo.Finish(statusCtx, doc.ID, models.DocStatusCompleted, res.StoredChunks, ""); err != nil {
		return err
	}
	doc.Status = models.DocStatusCompleted
	doc.ChunkCount = res.StoredChunks
	doc.Error = ""

	slog.Info("document processed", "document_id", doc.ID, "chunks", res.StoredChunks)
	return nil
}

func (s *Service) extract(ctx context.Context, doc *models.Document, data []byte) (string, error) {
	if len(data) == 0 {
		if doc.FilePath == "" {
			return "", &apperr.ExtractionFailure{FileType: doc.FileType, Err: errors.New("document has no file or text")}
		}
		rc, err := s.storage.Get(ctx, doc.FilePath)
		if err != nil {
			return "", &apperr.ExtractionFailure{FileType: doc.FileType, Err: err}
		}
		defer rc.Close()
		data, err = io.ReadAll(io.LimitReader(rc, MaxUploadBytes+1))
		if err != nil {
			return "", &apperr.ExtractionFailure{FileType: doc.FileType, Err: err}
		}
	}
	return s.extractor.Extract(ctx, data, doc.FileType)
}

func (s *Service) fail(ctx context.Context, doc *models.Document, stored int, cause error) error {
	msg := apperr.UserMessage(cause)
	if errors.Is(cause, rag.ErrNoChunks) {
		msg = "The document contains no text to index."
	}
	if err := s.repo.Finish(ctx, doc.ID, models.DocStatusFailed, stored, msg); err != nil {
		slog.Error("failed to record document failure", "document_id", doc.ID, "error", err)
	}
	doc.Status = models.DocStatusFailed
	doc.ChunkCount = stored
	doc.Error = msg

	slog.Warn("document processing failed", "document_id", doc.ID, "stored_chunks", stored, "error", cause)
	return cause
}

func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID, collectionID string, limit, offset int) ([]models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, ownerID, collectionID, limit, offset)
}

// Delete removes the document's chunks, its stored file and its row.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	doc, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.indexer.Remove(ctx, ownerID, doc.Kind, doc.ID.String()); err != nil {
		return fmt.Errorf("remove chunks: %w", err)
	}
	if doc.FilePath != "" {
		if err := s.storage.Delete(ctx, doc.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to delete stored file", "document_id", id, "path", doc.FilePath, "error", err)
		}
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	slog.Info("document deleted", "document_id", id, "owner_id", ownerID)
	return nil
}

// Retry schedules a failed document for reprocessing. Documents are never
// retried without this explicit call.
func (s *Service) Retry(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error) {
	doc, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocStatusFailed {
		return nil, apperr.Validation("status", "only failed documents can be retried (status is %s)", doc.Status)
	}

	if s.queue == nil {
		return s.Reprocess(ctx, ownerID, id)
	}

	if err := s.repo.Finish(ctx, doc.ID, models.DocStatusPending, doc.ChunkCount, ""); err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueDocumentReprocess(ctx, doc.ID, ownerID); err != nil {
		_ = s.repo.Finish(context.WithoutCancel(ctx), doc.ID, models.DocStatusFailed, doc.ChunkCount, doc.Error)
		return nil, fmt.Errorf("enqueue reprocess: %w", err)
	}
	doc.Status = models.DocStatusPending
	doc.Error = ""
	return doc, nil
}

// Reprocess deletes any chunks the document already has and runs the
// pipeline again from its stored text or file.
func (s *Service) Reprocess(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error) {
	doc, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.indexer.Remove(ctx, ownerID, doc.Kind, doc.ID.String()); err != nil {
		return nil, fmt.Errorf("remove previous chunks: %w", err)
	}
	doc.ChunkCount = 0
	return doc, s.process(ctx, doc, nil)
}
