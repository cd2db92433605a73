package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/document"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type DocumentHandler struct {
	svc *document.Service
}

func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type uploadTextRequest struct {
	CollectionID string      `json:"collection_id"`
	Title        string      `json:"title"`
	Kind         models.Kind `json:"kind"`
	Text         string      `json:"text"`
}

// Upload accepts multipart form data with a "file" part, or a JSON body with
// pasted text. Processing runs before the response is written.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}

	req := document.UploadRequest{OwnerID: owner}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, document.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart form"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "file required"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, document.MaxUploadBytes+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "could not read file"})
			return
		}
		req.CollectionID = r.FormValue("collection_id")
		req.Title = r.FormValue("title")
		req.Kind = models.Kind(r.FormValue("kind"))
		req.FileName = header.Filename
		req.ContentType = header.Header.Get("Content-Type")
		req.Data = data
	} else {
		var body uploadTextRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		req.CollectionID = body.CollectionID
		req.Title = body.Title
		req.Kind = body.Kind
		req.Text = body.Text
	}

	doc, err := h.svc.Upload(r.Context(), req)
	if err != nil {
		if doc == nil {
			writeError(w, r, err)
			return
		}
		// The document exists but processing failed; its status says so.
		writeJSON(w, apperr.HTTPStatus(err), map[string]interface{}{
			"error":    apperr.UserMessage(err),
			"kind":     errorKind(err),
			"document": doc,
		})
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, err := h.svc.List(r.Context(), owner, strings.TrimSpace(q.Get("collection_id")), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := documentRef(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := documentRef(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), owner, id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Retry re-runs processing for a failed document on the worker.
func (h *DocumentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := documentRef(w, r)
	if !ok {
		return
	}

	doc, err := h.svc.Retry(r.Context(), owner, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func documentRef(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	owner, ok := userID(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid document ID"})
		return "", uuid.Nil, false
	}
	return owner, id, true
}
