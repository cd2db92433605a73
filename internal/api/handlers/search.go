package handlers

import (
	"net/http"
	"strings"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/models"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
	"github.com/nikhilbhutani/revisionrag/internal/vectorstore"
)

const maxSearchLimit = 50

type SearchHandler struct {
	assembler    *rag.Assembler
	defaultLimit int
}

func NewSearchHandler(assembler *rag.Assembler, defaultLimit int) *SearchHandler {
	if defaultLimit <= 0 {
		defaultLimit = 8
	}
	return &SearchHandler{assembler: assembler, defaultLimit: defaultLimit}
}

type searchRequest struct {
	CollectionID string      `json:"collection_id"`
	Query        string      `json:"query"`
	Limit        int         `json:"limit"`
	Kind         models.Kind `json:"kind"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	var body searchRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Query) == "" {
		writeError(w, r, apperr.Validation("query", "is required"))
		return
	}
	if body.Kind != "" && !body.Kind.Valid() {
		writeError(w, r, apperr.Validation("kind", "must be %q or %q", models.KindMaterials, models.KindPastPapers))
		return
	}
	limit := body.Limit
	if limit <= 0 {
		limit = h.defaultLimit
	}
	limit = min(limit, maxSearchLimit)

	results, err := h.assembler.Search(r.Context(), rag.Scope{
		OwnerID:      owner,
		CollectionID: body.CollectionID,
		Kind:         body.Kind,
	}, body.Query, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []vectorstore.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}
