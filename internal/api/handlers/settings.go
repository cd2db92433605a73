package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

// SettingsStore reads and writes the stored credential preferences.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
	Upsert(ctx context.Context, s *models.UserSettings) error
}

type SettingsHandler struct {
	store SettingsStore
}

func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// settingsView never carries key values, only which providers have one.
type settingsView struct {
	PreferredProvider string   `json:"preferred_provider"`
	PreferredModel    string   `json:"preferred_model"`
	ProvidersWithKeys []string `json:"providers_with_keys"`
	Providers         []string `json:"providers"`
}

func view(s *models.UserSettings) settingsView {
	v := settingsView{ProvidersWithKeys: []string{}, Providers: llm.Supported()}
	if s == nil {
		return v
	}
	v.PreferredProvider = s.PreferredProvider
	v.PreferredModel = s.PreferredModel
	for p, k := range s.APIKeys {
		if k != "" {
			v.ProvidersWithKeys = append(v.ProvidersWithKeys, p)
		}
	}
	sort.Strings(v.ProvidersWithKeys)
	return v
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	s, err := h.store.Get(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(s))
}

type updateSettingsRequest struct {
	PreferredProvider string            `json:"preferred_provider"`
	PreferredModel    string            `json:"preferred_model"`
	APIKeys           map[string]string `json:"api_keys"`
}

// Update replaces the preferences and merges api_keys; an empty value
// removes that provider's key.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := userID(w, r)
	if !ok {
		return
	}
	var body updateSettingsRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if body.PreferredProvider != "" && !llm.IsSupported(body.PreferredProvider) {
		writeError(w, r, apperr.Validation("preferred_provider", "unsupported provider %q (supported: %v)", body.PreferredProvider, llm.Supported()))
		return
	}
	for p := range body.APIKeys {
		if !llm.IsSupported(p) {
			writeError(w, r, apperr.Validation("api_keys", "unsupported provider %q", p))
			return
		}
	}

	s := &models.UserSettings{
		UserID:            owner,
		PreferredProvider: body.PreferredProvider,
		PreferredModel:    body.PreferredModel,
		APIKeys:           body.APIKeys,
	}
	if err := h.store.Upsert(r.Context(), s); err != nil {
		writeError(w, r, err)
		return
	}

	stored, err := h.store.Get(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(stored))
}
