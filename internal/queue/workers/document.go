package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/queue"
)

// Reprocessor is the document operation the worker runs.
type Reprocessor interface {
	Reprocess(ctx context.Context, ownerID string, id uuid.UUID) (*models.Document, error)
}

type DocumentWorker struct {
	docs Reprocessor
}

func NewDocumentWorker(docs Reprocessor) *DocumentWorker {
	return &DocumentWorker{docs: docs}
}

// ProcessTask reprocesses one document. A processing failure is already
// recorded on the document, so it is reported to asynq as SkipRetry.
func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, ownerID, err := queue.ParseDocumentReprocess(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	slog.Info("reprocessing document", "document_id", id, "owner_id", ownerID)

	doc, err := w.docs.Reprocess(ctx, ownerID, id)
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			slog.Warn("document gone before reprocess", "document_id", id)
			return nil
		}
		return fmt.Errorf("reprocess document %s: %v: %w", id, err, asynq.SkipRetry)
	}

	slog.Info("document reprocessed", "document_id", id, "chunks", doc.ChunkCount)
	return nil
}
