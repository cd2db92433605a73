package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/revisionrag/internal/config"
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueDocumentReprocess schedules one reprocess attempt. The task is never
// retried by the queue, and a second request while one is pending is a no-op.
func (c *Client) EnqueueDocumentReprocess(ctx context.Context, documentID uuid.UUID, ownerID string) error {
	task, err := NewDocumentReprocessTask(documentID, ownerID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(10*time.Minute),
		asynq.TaskID("reprocess:"+documentID.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("reprocess already queued", "document_id", documentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeDocumentReprocess, err)
	}
	slog.Info("reprocess queued", "document_id", documentID, "task_id", info.ID, "queue", info.Queue)
	return nil
}
