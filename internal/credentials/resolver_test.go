package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/config"
	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type fakeSettings struct {
	byUser map[string]*models.UserSettings
	err    error
}

func (f *fakeSettings) Get(_ context.Context, userID string) (*models.UserSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

func serverConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider: "openai",
		DefaultModel:    "gpt-4o",
		OpenAIKey:       "server-openai",
		AnthropicKey:    "server-anthropic",
	}
}

func TestResolve_Precedence(t *testing.T) {
	settings := &fakeSettings{byUser: map[string]*models.UserSettings{
		"u1": {
			UserID:            "u1",
			PreferredProvider: "anthropic",
			PreferredModel:    "claude-3-5-haiku-20241022",
			APIKeys:           map[string]string{"anthropic": "user-anthropic", "grok": "user-grok"},
		},
	}}
	r := NewResolver(settings, serverConfig())
	ctx := context.Background()

	t.Run("explicit override wins", func(t *testing.T) {
		res, err := r.Resolve(ctx, "u1", Override{Provider: "grok", APIKey: "req-key", Model: "grok-3"})
		require.NoError(t, err)
		assert.Equal(t, Resolved{Provider: "grok", APIKey: "req-key", Model: "grok-3", Source: SourceRequest}, res)
	})

	t.Run("stored preference", func(t *testing.T) {
		res, err := r.Resolve(ctx, "u1", Override{})
		require.NoError(t, err)
		assert.Equal(t, Resolved{Provider: "anthropic", APIKey: "user-anthropic", Model: "claude-3-5-haiku-20241022", Source: SourceSettings}, res)
	})

	t.Run("override provider uses stored key for it", func(t *testing.T) {
		res, err := r.Resolve(ctx, "u1", Override{Provider: "grok"})
		require.NoError(t, err)
		assert.Equal(t, "user-grok", res.APIKey)
		assert.Equal(t, SourceSettings, res.Source)
		assert.Equal(t, "grok-3-mini", res.Model, "stored model belongs to another provider")
	})

	t.Run("server env", func(t *testing.T) {
		res, err := r.Resolve(ctx, "u2", Override{})
		require.NoError(t, err)
		assert.Equal(t, Resolved{Provider: "openai", APIKey: "server-openai", Model: "gpt-4o", Source: SourceServer}, res)
	})

	t.Run("no key anywhere", func(t *testing.T) {
		res, err := r.Resolve(ctx, "u2", Override{Provider: "openrouter"})
		require.NoError(t, err)
		assert.False(t, res.HasKey())
		assert.Equal(t, SourceNone, res.Source)
		assert.Equal(t, "openai/gpt-4o-mini", res.Model)
	})
}

func TestResolve_UnsupportedProvider(t *testing.T) {
	r := NewResolver(nil, serverConfig())
	_, err := r.Resolve(context.Background(), "u1", Override{Provider: "ollama"})

	var valErr *apperr.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestResolve_SettingsError(t *testing.T) {
	r := NewResolver(&fakeSettings{err: errors.New("db down")}, serverConfig())
	_, err := r.Resolve(context.Background(), "u1", Override{})
	assert.ErrorContains(t, err, "db down")
}
