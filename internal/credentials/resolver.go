package credentials

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

// Source records which tier supplied the API key.
type Source string

const (
	SourceRequest  Source = "request"
	SourceSettings Source = "user_settings"
	SourceServer   Source = "server"
	SourceNone     Source = "none"
)

// Resolved is the provider, key and model a single request runs with. It is
// built once and passed down; nothing below re-resolves credentials.
type Resolved struct {
	Provider string
	APIKey   string
	Model    string
	Source   Source
}

func (r Resolved) HasKey() bool { return r.APIKey != "" }

// Override carries per-request choices; empty fields fall through.
type Override struct {
	Provider string
	APIKey   string
	Model    string
}

type SettingsStore interface {
	Get(ctx context.Context, userID string) (*models.UserSettings, error)
}

type Resolver struct {
	settings SettingsStore
	cfg      config.LLMConfig
}

func NewResolver(settings SettingsStore, cfg config.LLMConfig) *Resolver {
	return &Resolver{settings: settings, cfg: cfg}
}

// Resolve applies explicit override, then stored user preference, then the
// server's per-provider environment key. A missing key is not an error here;
// callers decide whether to fail before doing work.
func (r *Resolver) Resolve(ctx context.Context, userID string, o Override) (Resolved, error) {
	var prefs *models.UserSettings
	if r.settings != nil && userID != "" {
		s, err := r.settings.Get(ctx, userID)
		if err != nil {
			return Resolved{}, fmt.Errorf("load user settings: %w", err)
		}
		prefs = s
	}
	if prefs == nil {
		prefs = &models.UserSettings{}
	}

	provider := firstNonEmpty(o.Provider, prefs.PreferredProvider, r.cfg.DefaultProvider)
	if !llm.IsSupported(provider) {
		return Resolved{}, apperr.Validation("provider", "unsupported provider %q (supported: %v)", provider, llm.Supported())
	}

	res := Resolved{Provider: provider, Source: SourceNone}
	switch {
	case o.APIKey != "":
		res.APIKey, res.Source = o.APIKey, SourceRequest
	case prefs.APIKeys[provider] != "":
		res.APIKey, res.Source = prefs.APIKeys[provider], SourceSettings
	case r.serverKey(provider) != "":
		res.APIKey, res.Source = r.serverKey(provider), SourceServer
	}

	// A stored or configured model only applies to the provider it was chosen for.
	var prefModel, serverModel string
	if prefs.PreferredProvider == provider {
		prefModel = prefs.PreferredModel
	}
	if r.cfg.DefaultProvider == provider {
		serverModel = r.cfg.DefaultModel
	}
	res.Model = firstNonEmpty(o.Model, prefModel, serverModel, llm.DefaultModel(provider))

	return res, nil
}

func (r *Resolver) serverKey(provider string) string {
	switch provider {
	case "openai":
		return r.cfg.OpenAIKey
	case "anthropic":
		return r.cfg.AnthropicKey
	case "openrouter":
		return r.cfg.OpenRouterKey
	case "grok":
		return r.cfg.GrokKey
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
