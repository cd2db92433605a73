package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeDocumentReprocess = "document:reprocess"

// DocumentReprocessPayload is the body of a user-requested reprocess.
type DocumentReprocessPayload struct {
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
}

func NewDocumentReprocessTask(documentID uuid.UUID, ownerID string) (*asynq.Task, error) {
	data, err := json.Marshal(DocumentReprocessPayload{DocumentID: documentID.String(), OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeDocumentReprocess, data), nil
}

// ParseDocumentReprocess decodes and checks a reprocess payload.
func ParseDocumentReprocess(t *asynq.Task) (uuid.UUID, string, error) {
	var p DocumentReprocessPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, "", fmt.Errorf("unmarshal payload: %w", err)
	}
	id, err := uuid.Parse(p.DocumentID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("parse document ID: %w", err)
	}
	if p.OwnerID == "" {
		return uuid.Nil, "", fmt.Errorf("payload has no owner")
	}
	return id, p.OwnerID, nil
}
