// Package ragtest provides deterministic in-process stand-ins for the
// embedding gateway and document repository.
package ragtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/nikhilbhutani/revisionrag/internal/models"
)

const Dimensions = 64

// HashEmbedder embeds text as a bag of hashed lowercase words, so texts that
// share words are similar. It never produces a zero vector.
type HashEmbedder struct {
	Batch int
	// FailAfter makes Embed fail once this many calls have succeeded; 0 disables.
	FailAfter int
	Err       error

	mu    sync.Mutex
	calls int
	Texts [][]string
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.Texts = append(e.Texts, texts)
	e.mu.Unlock()

	if e.FailAfter > 0 && n > e.FailAfter {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HashEmbedder) Model() string { return "hash-embedding" }

func (e *HashEmbedder) BatchSize() int {
	if e.Batch <= 0 {
		return 10
	}
	return e.Batch
}

func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func Vector(text string) []float32 {
	v := make([]float32, Dimensions)
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+int(h.Sum32()%(Dimensions-1))] += 1
	}
	return v
}

// Documents is an in-memory document listing keyed by owner and collection.
type Documents struct {
	mu   sync.Mutex
	Docs []models.Document
}

func (d *Documents) Add(doc models.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Docs = append(d.Docs, doc)
}

func (d *Documents) ListByCollection(_ context.Context, ownerID, collectionID string, kind models.Kind) ([]models.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.Document
	for _, doc := range d.Docs {
		if doc.OwnerID == ownerID && doc.CollectionID == collectionID && doc.Kind == kind {
			out = append(out, doc)
		}
	}
	return out, nil
}
