package vectorstore

import (
	"context"
	"strings"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

// Filter names accepted by Search. Anything else is rejected.
const (
	FilterOwnerID      = "ownerId"
	FilterCollectionID = "collectionId"
	FilterDocumentID   = "documentId"
	FilterContentKind  = "contentKind"
)

// filterColumns maps filter names to document_chunks columns.
var filterColumns = map[string]string{
	FilterOwnerID:      "owner_id",
	FilterCollectionID: "collection_id",
	FilterDocumentID:   "document_id",
	FilterContentKind:  "content_kind",
}

type Filter struct {
	Name  string
	Value string
}

func Eq(name, value string) Filter { return Filter{Name: name, Value: value} }

// ChunkMetadata travels with every stored chunk and comes back on search.
type ChunkMetadata struct {
	DocumentID     string      `json:"document_id"`
	OwnerID        string      `json:"owner_id"`
	CollectionID   string      `json:"collection_id"`
	ContentKind    models.Kind `json:"content_kind"`
	TotalChunks    int         `json:"total_chunks"`
	TokenCount     int         `json:"token_count"`
	EmbeddingModel string      `json:"embedding_model"`
}

type InsertChunk struct {
	Text      string
	Embedding []float32
	Metadata  ChunkMetadata
}

type SearchResult struct {
	ChunkID    string        `json:"chunk_id"`
	Content    string        `json:"content"`
	ChunkIndex int           `json:"chunk_index"`
	Score      float64       `json:"score"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// VectorStore is a namespaced similarity index. Every call is scoped to
// exactly one namespace; entries are groups of chunks keyed by entryID (the
// document id).
type VectorStore interface {
	// Insert stores chunks with chunk index startOrder+i.
	Insert(ctx context.Context, namespace, entryID string, chunks []InsertChunk, startOrder int) error
	// Search ranks by cosine similarity, descending, at most limit results.
	Search(ctx context.Context, namespace string, query []float32, limit int, filters []Filter) ([]SearchResult, error)
	DeleteEntry(ctx context.Context, namespace, entryID string) error
}

// ownerEscaper keeps namespaces injective: no owner id can produce the
// ":past_papers" suffix of another owner.
var ownerEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Namespace returns the vector namespace for an owner's content of kind.
func Namespace(ownerID string, kind models.Kind) string {
	ns := "user_" + ownerEscaper.Replace(ownerID)
	if kind == models.KindPastPapers {
		ns += ":past_papers"
	}
	return ns
}

func validateNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" || namespace == "user_" || strings.HasPrefix(namespace, "user_:") {
		return apperr.Validation("namespace", "is required")
	}
	return nil
}

func validateFilters(filters []Filter) error {
	for _, f := range filters {
		if _, ok := filterColumns[f.Name]; !ok {
			return apperr.Validation("filter", "unknown filter %q", f.Name)
		}
		if f.Value == "" {
			return apperr.Validation("filter", "%s requires a value", f.Name)
		}
	}
	return nil
}

func validateSearch(namespace string, query []float32, limit int, filters []Filter) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	if len(query) == 0 {
		return apperr.Validation("query", "embedding is empty")
	}
	if limit <= 0 {
		return apperr.Validation("limit", "must be positive")
	}
	return validateFilters(filters)
}
