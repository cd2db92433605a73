package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/identity"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps err through apperr to a status and a message safe to show
// the user. Unclassified errors are logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		slog.Error("request failed",
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Error: apperr.UserMessage(err), Kind: errorKind(err)})
}

func errorKind(err error) string {
	var (
		cfgErr  *apperr.ConfigurationError
		provErr *apperr.ProviderError
		extErr  *apperr.ExtractionFailure
		parse   *apperr.ParseFailure
	)
	switch {
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &provErr):
		return string(provErr.Kind)
	case errors.As(err, &extErr):
		return "extraction"
	case errors.As(err, &parse):
		return "parse"
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// userID returns the authenticated caller or writes 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identity.UserID(r.Context())
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
		return "", false
	}
	return id, true
}
