package document

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/document/documenttest"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
	"github.com/nikhilbhutani/revisionrag/internal/rag/ragtest"
	"github.com/nikhilbhutani/revisionrag/internal/storage"
	"github.com/nikhilbhutani/revisionrag/internal/vectorstore"
	"github.com/nikhilbhutani/revisionrag/pkg/chunker"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (q *fakeQueue) EnqueueDocumentReprocess(_ context.Context, id uuid.UUID, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, id)
	return nil
}

type env struct {
	svc   *Service
	repo  *documenttest.Repository
	blobs *storage.LocalStorage
	store *vectorstore.MemoryStore
	emb   *ragtest.HashEmbedder
}

func newEnv(t *testing.T, queue Enqueuer) *env {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	e := &env{
		repo:  documenttest.NewRepository(),
		blobs: blobs,
		store: vectorstore.NewMemoryStore(),
		emb:   &ragtest.HashEmbedder{Batch: 2},
	}
	indexer := rag.NewIndexer(e.store, e.emb, chunker.Options{ChunkSize: 100, ChunkOverlap: 20}, 2)
	e.svc = NewService(e.repo, blobs, indexer, queue)
	return e
}

func longText(n int) string {
	return strings.Repeat("Photosynthesis converts light energy into chemical energy. ", n)
}

func TestUpload_FileIsStoredExtractedAndIndexed(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	doc, err := e.svc.Upload(ctx, UploadRequest{
		OwnerID:      "u1",
		CollectionID: "bio",
		FileName:     "Plant Notes.txt",
		Data:         []byte(longText(10)),
	})
	require.NoError(t, err)

	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Equal(t, "Plant Notes", doc.Title)
	assert.Equal(t, models.KindMaterials, doc.Kind)
	assert.Equal(t, ".txt", doc.FileType)
	assert.Greater(t, doc.ChunkCount, 1)
	assert.Equal(t, doc.ChunkCount, e.store.Count(vectorstore.Namespace("u1", models.KindMaterials)))

	stored, err := e.repo.Get(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, stored.Status)
	require.True(t, stored.HasText())
	assert.Contains(t, *stored.ExtractedText, "Photosynthesis")
	assert.Equal(t, []string{models.DocStatusPending, models.DocStatusProcessing, models.DocStatusCompleted}, e.repo.Statuses[doc.ID])

	rc, err := e.blobs.Get(ctx, doc.FilePath)
	require.NoError(t, err)
	rc.Close()
	assert.True(t, strings.HasPrefix(doc.FilePath, "u1/"+doc.ID.String()+"/"))
}

func TestUpload_PastPaperTextGoesToItsNamespace(t *testing.T) {
	e := newEnv(t, nil)

	doc, err := e.svc.Upload(context.Background(), UploadRequest{
		OwnerID:      "u1",
		CollectionID: "bio",
		Kind:         models.KindPastPapers,
		Text:         "Q1. Describe the structure of a mitochondrion. [4 marks]",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pasted text", doc.Title)
	assert.Empty(t, doc.FilePath)
	assert.Equal(t, 1, e.store.Count(vectorstore.Namespace("u1", models.KindPastPapers)))
	assert.Zero(t, e.store.Count(vectorstore.Namespace("u1", models.KindMaterials)))
}

func TestUpload_Validation(t *testing.T) {
	e := newEnv(t, nil)
	cases := map[string]UploadRequest{
		"collection_id": {OwnerID: "u1", Text: "x"},
		"kind":          {OwnerID: "u1", CollectionID: "c", Kind: "essays", Text: "x"},
		"file":          {OwnerID: "u1", CollectionID: "c", FileName: "slides.pptx", Data: []byte("x")},
	}
	for field, req := range cases {
		_, err := e.svc.Upload(context.Background(), req)
		var ve *apperr.ValidationError
		require.True(t, errors.As(err, &ve), field)
		assert.Equal(t, field, ve.Field)
	}
	_, err := e.svc.Upload(context.Background(), UploadRequest{OwnerID: "u1", CollectionID: "c"})
	assert.Error(t, err)
}

func TestUpload_ExtractionFailureMarksFailed(t *testing.T) {
	e := newEnv(t, nil)

	doc, err := e.svc.Upload(context.Background(), UploadRequest{
		OwnerID:      "u1",
		CollectionID: "bio",
		FileName:     "scan.pdf",
		Data:         []byte("%PDF-1.4 garbage without a text layer"),
	})

	var ef *apperr.ExtractionFailure
	require.True(t, errors.As(err, &ef))
	require.NotNil(t, doc)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.NotEmpty(t, doc.Error)
	assert.Zero(t, e.emb.Calls())

	stored, err := e.repo.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, stored.Status)
	assert.False(t, stored.HasText())
}

func TestUpload_PartialEmbeddingFailureKeepsStoredChunks(t *testing.T) {
	e := newEnv(t, nil)
	e.emb.FailAfter = 1
	e.emb.Err = &apperr.ProviderError{Kind: apperr.RateLimited, Provider: "openai", Status: 429}

	doc, err := e.svc.Upload(context.Background(), UploadRequest{
		OwnerID:      "u1",
		CollectionID: "bio",
		Text:         longText(20),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsProviderKind(err, apperr.RateLimited))

	assert.Equal(t, models.DocStatusFailed, doc.Status)
	stored := e.store.Count(vectorstore.Namespace("u1", models.KindMaterials))
	assert.Equal(t, stored, doc.ChunkCount)
	assert.Contains(t, doc.Error, "rate limiting")
}

func TestRetry_Inline(t *testing.T) {
	e := newEnv(t, nil)
	e.emb.FailAfter = 1
	e.emb.Err = errors.New("embedding outage")
	ctx := context.Background()

	doc, err := e.svc.Upload(ctx, UploadRequest{OwnerID: "u1", CollectionID: "bio", Text: longText(20)})
	require.Error(t, err)

	e.emb.FailAfter = 0
	doc, err = e.svc.Retry(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusCompleted, doc.Status)
	assert.Empty(t, doc.Error)
	assert.Equal(t, doc.ChunkCount, e.store.Count(vectorstore.Namespace("u1", models.KindMaterials)))

	_, err = e.svc.Retry(ctx, "u1", doc.ID)
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestRetry_Enqueued(t *testing.T) {
	q := &fakeQueue{}
	e := newEnv(t, q)
	ctx := context.Background()

	doc, err := e.svc.Upload(ctx, UploadRequest{OwnerID: "u1", CollectionID: "bio", FileName: "empty.txt", Data: []byte("   ")})
	require.Error(t, err)
	require.Equal(t, models.DocStatusFailed, doc.Status)

	doc, err = e.svc.Retry(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusPending, doc.Status)
	assert.Equal(t, []uuid.UUID{doc.ID}, q.jobs)

	_, err = e.svc.Retry(ctx, "someone-else", doc.ID)
	var nf *apperr.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestRetry_EnqueueFailureRestoresFailed(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	e := newEnv(t, q)
	ctx := context.Background()

	doc, _ := e.svc.Upload(ctx, UploadRequest{OwnerID: "u1", CollectionID: "bio", FileName: "empty.txt", Data: []byte(" ")})
	_, err := e.svc.Retry(ctx, "u1", doc.ID)
	require.Error(t, err)

	stored, err := e.repo.Get(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, stored.Status)
}

func TestReprocess_ReplacesChunks(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	doc, err := e.svc.Upload(ctx, UploadRequest{OwnerID: "u1", CollectionID: "bio", FileName: "n.md", Data: []byte(longText(5))})
	require.NoError(t, err)
	before := e.store.Count(vectorstore.Namespace("u1", models.KindMaterials))

	doc, err = e.svc.Reprocess(ctx, "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, before, doc.ChunkCount)
	assert.Equal(t, before, e.store.Count(vectorstore.Namespace("u1", models.KindMaterials)))
}

func TestDelete_RemovesChunksFileAndRow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	doc, err := e.svc.Upload(ctx, UploadRequest{OwnerID: "u1", CollectionID: "bio", FileName: "n.txt", Data: []byte(longText(5))})
	require.NoError(t, err)

	var nf *apperr.NotFoundError
	require.True(t, errors.As(e.svc.Delete(ctx, "u2", doc.ID), &nf))

	require.NoError(t, e.svc.Delete(ctx, "u1", doc.ID))
	assert.Zero(t, e.store.Count(vectorstore.Namespace("u1", models.KindMaterials)))
	_, err = e.blobs.Get(ctx, doc.FilePath)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = e.svc.Get(ctx, "u1", doc.ID)
	assert.True(t, errors.As(err, &nf))
}

func TestList_ScopedToOwnerAndCollection(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, r := range []UploadRequest{
		{OwnerID: "u1", CollectionID: "bio", Text: "cells"},
		{OwnerID: "u1", CollectionID: "chem", Text: "atoms"},
		{OwnerID: "u2", CollectionID: "bio", Text: "plants"},
	} {
		_, err := e.svc.Upload(ctx, r)
		require.NoError(t, err)
	}

	docs, err := e.svc.List(ctx, "u1", "bio", 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bio", docs[0].CollectionID)

	docs, err = e.svc.List(ctx, "u1", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
