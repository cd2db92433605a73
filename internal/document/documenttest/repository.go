// Package documenttest provides an in-memory document repository.
package documenttest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type Repository struct {
	mu   sync.Mutex
	docs map[uuid.UUID]models.Document
	now  time.Time
	// Statuses records every status a document passed through, in order.
	Statuses map[uuid.UUID][]string
}

func NewRepository() *Repository {
	return &Repository{
		docs:     make(map[uuid.UUID]models.Document),
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Statuses: make(map[uuid.UUID][]string),
	}
}

func (r *Repository) tick() time.Time {
	r.now = r.now.Add(time.Second)
	return r.now
}

func (r *Repository) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.CreatedAt = r.tick()
	doc.UpdatedAt = doc.CreatedAt
	d := *doc
	if doc.ExtractedText != nil {
		text := *doc.ExtractedText
		d.ExtractedText = &text
	}
	r.docs[doc.ID] = d
	r.Statuses[doc.ID] = append(r.Statuses[doc.ID], doc.Status)
	return nil
}

func (r *Repository) Get(_ context.Context, ownerID string, id uuid.UUID) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.OwnerID != ownerID {
		return nil, apperr.NotFound("document", id.String())
	}
	return &d, nil
}

func (r *Repository) List(_ context.Context, ownerID, collectionID string, limit, offset int) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID && (collectionID == "" || d.CollectionID == collectionID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) ListByCollection(_ context.Context, ownerID, collectionID string, kind models.Kind) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID && d.CollectionID == collectionID && d.Kind == kind {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) update(id uuid.UUID, fn func(*models.Document)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return apperr.NotFound("document", id.String())
	}
	fn(&d)
	d.UpdatedAt = r.tick()
	r.docs[id] = d
	return nil
}

func (r *Repository) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	return r.update(id, func(d *models.Document) {
		d.Status = status
		r.Statuses[id] = append(r.Statuses[id], status)
	})
}

func (r *Repository) SaveText(_ context.Context, id uuid.UUID, text string) error {
	return r.update(id, func(d *models.Document) { d.ExtractedText = &text })
}

func (r *Repository) Finish(_ context.Context, id uuid.UUID, status string, chunkCount int, errMsg string) error {
	return r.update(id, func(d *models.Document) {
		d.Status = status
		d.ChunkCount = chunkCount
		d.Error = errMsg
		r.Statuses[id] = append(r.Statuses[id], status)
	})
}

func (r *Repository) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.OwnerID != ownerID {
		return apperr.NotFound("document", id.String())
	}
	delete(r.docs, id)
	return nil
}
