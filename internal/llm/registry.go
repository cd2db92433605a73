package llm

import (
	"fmt"
	"sort"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
)

type providerSpec struct {
	defaultModel string
	baseURL      string
	envKey       string
	new          func(name, apiKey, defaultModel string, opts ProviderOptions) Provider
}

// registry is the single place a provider id maps to its adapter.
var registry = map[string]providerSpec{
	"openai": {
		defaultModel: "gpt-4o-mini",
		envKey:       "OPENAI_API_KEY",
		new:          newOpenAICompat,
	},
	"openrouter": {
		defaultModel: "openai/gpt-4o-mini",
		baseURL:      "https://openrouter.ai/api/v1",
		envKey:       "OPENROUTER_API_KEY",
		new:          newOpenAICompat,
	},
	"grok": {
		defaultModel: "grok-3-mini",
		baseURL:      "https://api.x.ai/v1",
		envKey:       "GROK_API_KEY",
		new:          newOpenAICompat,
	},
	"anthropic": {
		defaultModel: "claude-sonnet-4-20250514",
		envKey:       "ANTHROPIC_API_KEY",
		new:          newAnthropic,
	},
}

// NewProvider builds the adapter for name. An empty key is a configuration
// error so no request is ever sent without credentials.
func NewProvider(name, apiKey string, opts ProviderOptions) (Provider, error) {
	spec, ok := registry[name]
	if !ok {
		return nil, apperr.Validation("provider", "unsupported provider %q (supported: %v)", name, Supported())
	}
	if apiKey == "" {
		return nil, MissingKey(name)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spec.baseURL
	}
	return spec.new(name, apiKey, spec.defaultModel, opts), nil
}

// MissingKey is the error returned when no credential exists for provider.
func MissingKey(provider string) error {
	remedy := "Add an API key in Settings"
	if spec, ok := registry[provider]; ok {
		remedy = fmt.Sprintf("Add an API key in Settings or set %s on the server", spec.envKey)
	}
	return apperr.Configuration(fmt.Sprintf("No API key configured for %s", provider), remedy)
}

func IsSupported(name string) bool {
	_, ok := registry[name]
	return ok
}

func DefaultModel(name string) string {
	return registry[name].defaultModel
}

func Supported() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
