package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/vectorstore"
	"github.com/nikhilbhutani/revisionrag/pkg/tokenizer"
)

const chunkSeparator = "\n\n"

// Scope names the owner, collection and kind a retrieval may read.
type Scope struct {
	OwnerID      string
	CollectionID string
	Kind         models.Kind
}

func (s Scope) validate() error {
	if s.OwnerID == "" {
		return apperr.Validation("owner_id", "is required")
	}
	if s.CollectionID == "" {
		return apperr.Validation("collection_id", "is required")
	}
	return nil
}

func (s Scope) kind() models.Kind {
	if s.Kind == "" {
		return models.KindMaterials
	}
	return s.Kind
}

// DocumentLister returns the owner's documents in a collection.
type DocumentLister interface {
	ListByCollection(ctx context.Context, ownerID, collectionID string, kind models.Kind) ([]models.Document, error)
}

type AssemblerOptions struct {
	DocPrefixChars  int
	MaxContextChars int
	Concurrency     int
}

// Context is the assembled retrieval text. An empty Context (ChunkCount 0)
// means nothing relevant was found.
type Context struct {
	Text          string                     `json:"text"`
	Chunks        []vectorstore.SearchResult `json:"chunks"`
	ChunkCount    int                        `json:"chunk_count"`
	DocumentCount int                        `json:"document_count"`
	Truncated     bool                       `json:"truncated"`
	Tokens        int                        `json:"tokens"`
}

func (c *Context) Empty() bool { return c == nil || c.ChunkCount == 0 }

type Assembler struct {
	store    vectorstore.VectorStore
	embedder Embedder
	docs     DocumentLister
	opts     AssemblerOptions
}

func NewAssembler(store vectorstore.VectorStore, embedder Embedder, docs DocumentLister, opts AssemblerOptions) *Assembler {
	if opts.DocPrefixChars <= 0 {
		opts.DocPrefixChars = 500
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 24000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Assembler{store: store, embedder: embedder, docs: docs, opts: opts}
}

// Search embeds query once and returns the ranked chunks of the collection.
func (a *Assembler) Search(ctx context.Context, scope Scope, query string, limit int) ([]vectorstore.SearchResult, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Validation("query", "is required")
	}

	vec, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := a.store.Search(ctx, vectorstore.Namespace(scope.OwnerID, scope.kind()), vec, limit, []vectorstore.Filter{
		vectorstore.Eq(vectorstore.FilterOwnerID, scope.OwnerID),
		vectorstore.Eq(vectorstore.FilterCollectionID, scope.CollectionID),
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return inScope(scope, results), nil
}

// ForQuery returns the chunks most similar to query, in ranked order.
func (a *Assembler) ForQuery(ctx context.Context, scope Scope, query string, limit int) (*Context, error) {
	results, err := a.Search(ctx, scope, query, limit)
	if err != nil {
		return nil, err
	}
	return a.build(results), nil
}

// ForCollection gathers context for whole-collection tasks. Each document's
// leading text stands in as its query; all prefixes are embedded in one call
// and each search is restricted to its own document. Chunks are grouped by
// document in listing order, then by chunk index.
func (a *Assembler) ForCollection(ctx context.Context, scope Scope, limit int) (*Context, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}

	docs, err := a.docs.ListByCollection(ctx, scope.OwnerID, scope.CollectionID, scope.kind())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var withText []models.Document
	var prefixes []string
	for _, d := range docs {
		if !d.HasText() {
			continue
		}
		withText = append(withText, d)
		prefixes = append(prefixes, prefix(*d.ExtractedText, a.opts.DocPrefixChars))
	}
	if len(withText) == 0 {
		return a.build(nil), nil
	}

	vecs, err := a.embedder.Embed(ctx, prefixes)
	if err != nil {
		return nil, fmt.Errorf("embed document prefixes: %w", err)
	}

	namespace := vectorstore.Namespace(scope.OwnerID, scope.kind())
	perDoc := make([][]vectorstore.SearchResult, len(withText))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, d := range withText {
		g.Go(func() error {
			res, err := a.store.Search(gctx, namespace, vecs[i], limit, []vectorstore.Filter{
				vectorstore.Eq(vectorstore.FilterOwnerID, scope.OwnerID),
				vectorstore.Eq(vectorstore.FilterCollectionID, scope.CollectionID),
				vectorstore.Eq(vectorstore.FilterDocumentID, d.ID.String()),
			})
			if err != nil {
				return fmt.Errorf("search document %s: %w", d.ID, err)
			}
			perDoc[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ordered []vectorstore.SearchResult
	for _, res := range perDoc {
		res = inScope(scope, res)
		sort.SliceStable(res, func(i, j int) bool { return res[i].ChunkIndex < res[j].ChunkIndex })
		for _, r := range res {
			if seen[r.ChunkID] {
				continue
			}
			seen[r.ChunkID] = true
			ordered = append(ordered, r)
		}
	}

	return a.build(ordered), nil
}

// build joins whole chunks until the next one would exceed MaxContextChars.
func (a *Assembler) build(results []vectorstore.SearchResult) *Context {
	c := &Context{}
	var sb strings.Builder
	size := 0
	docs := make(map[string]bool)

	for i, r := range results {
		add := utf8.RuneCountInString(r.Content)
		if sb.Len() > 0 {
			add += len(chunkSeparator)
		}
		if size+add > a.opts.MaxContextChars {
			c.Truncated = true
			slog.Debug("context truncated", "kept", i, "dropped", len(results)-i)
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(chunkSeparator)
		}
		sb.WriteString(r.Content)
		size += add
		c.Chunks = append(c.Chunks, r)
		docs[r.Metadata.DocumentID] = true
	}

	c.Text = sb.String()
	c.ChunkCount = len(c.Chunks)
	c.DocumentCount = len(docs)
	c.Tokens = tokenizer.CountTokens(c.Text)
	return c
}

// inScope drops results whose metadata belong to another owner or collection.
func inScope(scope Scope, results []vectorstore.SearchResult) []vectorstore.SearchResult {
	out := results[:0:0]
	for _, r := range results {
		if r.Metadata.OwnerID != scope.OwnerID || r.Metadata.CollectionID != scope.CollectionID {
			slog.Warn("dropping out-of-scope chunk",
				"chunk_id", r.ChunkID,
				"owner_id", scope.OwnerID,
				"collection_id", scope.CollectionID,
			)
			continue
		}
		out = append(out, r)
	}
	return out
}

func prefix(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
