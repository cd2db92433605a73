package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/revisionrag/internal/credentials"
	"github.com/nikhilbhutani/revisionrag/internal/generation"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
)

type GenerateHandler struct {
	svc *generation.Service
}

func NewGenerateHandler(svc *generation.Service) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

type generateRequest struct {
	Task          generation.Task `json:"task"`
	CollectionID  string          `json:"collection_id"`
	Content       string          `json:"content"`
	Query         string          `json:"query"`
	History       []llm.Message   `json:"history"`
	Count         int             `json:"count"`
	Difficulty    string          `json:"difficulty"`
	Style         string          `json:"style"`
	AcademicLevel string          `json:"academic_level"`
	Provider      string          `json:"provider"`
	APIKey        string          `json:"api_key"`
	Model         string          `json:"model"`
}

// Generate runs one task. An insufficient_context result is still a 200;
// callers check the status field.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	var body generateRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := h.svc.Run(r.Context(), generation.Request{
		Task:          body.Task,
		UserID:        owner,
		CollectionID:  body.CollectionID,
		Content:       body.Content,
		Query:         body.Query,
		History:       body.History,
		Count:         body.Count,
		Difficulty:    body.Difficulty,
		Style:         body.Style,
		AcademicLevel: body.AcademicLevel,
		Override: credentials.Override{
			Provider: body.Provider,
			APIKey:   body.APIKey,
			Model:    body.Model,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
