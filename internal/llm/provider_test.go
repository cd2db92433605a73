package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
)

type capturedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

func captureServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

const openAIChatResponse = `{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"Mitosis has four phases."},"finish_reason":"stop"}],
"usage":{"prompt_tokens":12,"completion_tokens":6,"total_tokens":18}}`

const anthropicResponse = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
"content":[{"type":"text","text":"Mitosis "},{"type":"text","text":"has four phases."}],
"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`

func chatRequest() ChatRequest {
	return ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a revision tutor."},
			{Role: RoleUser, Content: "Explain mitosis."},
		},
		Temperature: 0.5,
		MaxTokens:   256,
	}
}

func TestOpenAICompatibleProviders_RequestShape(t *testing.T) {
	for _, name := range []string{"openai", "openrouter", "grok"} {
		t.Run(name, func(t *testing.T) {
			srv, captured := captureServer(t, http.StatusOK, openAIChatResponse)

			p, err := NewProvider(name, "key-"+name, ProviderOptions{BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())

			resp, err := p.ChatCompletion(context.Background(), chatRequest())
			require.NoError(t, err)

			assert.Equal(t, "/v1/chat/completions", captured.Path)
			assert.Equal(t, "Bearer key-"+name, captured.Header.Get("Authorization"))
			assert.Equal(t, DefaultModel(name), captured.Body["model"])
			assert.EqualValues(t, 256, captured.Body["max_tokens"])
			assert.InDelta(t, 0.5, captured.Body["temperature"], 1e-6)

			msgs, ok := captured.Body["messages"].([]any)
			require.True(t, ok)
			require.Len(t, msgs, 2)
			first := msgs[0].(map[string]any)
			assert.Equal(t, "system", first["role"])
			assert.Equal(t, "You are a revision tutor.", first["content"])
			_, hasSystem := captured.Body["system"]
			assert.False(t, hasSystem)

			assert.Equal(t, "Mitosis has four phases.", resp.Content)
			assert.Equal(t, name, resp.Provider)
			assert.Equal(t, 18, resp.TotalTokens)
		})
	}
}

func TestAnthropicProvider_RequestShape(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, anthropicResponse)

	p, err := NewProvider("anthropic", "sk-ant", ProviderOptions{BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.ChatCompletion(context.Background(), chatRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(captured.Path, "/v1/messages"), captured.Path)
	assert.Equal(t, "sk-ant", captured.Header.Get("X-Api-Key"))
	assert.Equal(t, "claude-sonnet-4-20250514", captured.Body["model"])
	assert.EqualValues(t, 256, captured.Body["max_tokens"])

	system, ok := captured.Body["system"].([]any)
	require.True(t, ok, "system must be a top-level field")
	require.Len(t, system, 1)
	assert.Equal(t, "You are a revision tutor.", system[0].(map[string]any)["text"])

	msgs := captured.Body["messages"].([]any)
	require.Len(t, msgs, 1)
	for _, m := range msgs {
		assert.NotEqual(t, "system", m.(map[string]any)["role"])
	}

	assert.Equal(t, "Mitosis has four phases.", resp.Content)
	assert.Equal(t, 15, resp.TotalTokens)
	assert.Equal(t, "anthropic", resp.Provider)
}

func TestProvider_ErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   apperr.ProviderKind
	}{
		{http.StatusTooManyRequests, apperr.RateLimited},
		{http.StatusUnauthorized, apperr.Unauthorized},
		{http.StatusForbidden, apperr.Forbidden},
		{http.StatusInternalServerError, apperr.Unknown},
	}

	for _, name := range []string{"openai", "anthropic"} {
		for _, tc := range cases {
			t.Run(fmt.Sprintf("%s_%d", name, tc.status), func(t *testing.T) {
				var calls int
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls++
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"nope"}}`))
				}))
				defer srv.Close()

				base := srv.URL
				if name == "openai" {
					base += "/v1"
				}
				p, err := NewProvider(name, "key", ProviderOptions{BaseURL: base})
				require.NoError(t, err)

				_, err = p.ChatCompletion(context.Background(), chatRequest())
				require.Error(t, err)

				var pe *apperr.ProviderError
				require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
				assert.Equal(t, tc.kind, pe.Kind)
				assert.Equal(t, tc.status, pe.Status)
				assert.Equal(t, name, pe.Provider)
				assert.Equal(t, 1, calls, "no retries")
			})
		}
	}
}

func TestNewProvider_MissingKeyAndUnknown(t *testing.T) {
	_, err := NewProvider("openai", "", ProviderOptions{})
	var cfgErr *apperr.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Reason, "openai")
	assert.Contains(t, cfgErr.Remediation, "OPENAI_API_KEY")

	_, err = NewProvider("ollama", "key", ProviderOptions{})
	var valErr *apperr.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []string{"anthropic", "grok", "openai", "openrouter"}, Supported())
	assert.True(t, IsSupported("grok"))
	assert.False(t, IsSupported("gemini"))
}

func TestGenerateEmbedding_OrdersByIndex(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"object":"list","model":"text-embedding-3-small",
"data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],
"usage":{"prompt_tokens":4,"total_tokens":4}}`)

	p := NewOpenAICompatProvider("openai", "key", "gpt-4o-mini", ProviderOptions{BaseURL: srv.URL + "/v1"})
	resp, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"a", "b"}})
	require.NoError(t, err)

	assert.Equal(t, "/v1/embeddings", captured.Path)
	assert.Equal(t, "text-embedding-3-small", captured.Body["model"])
	assert.Equal(t, []any{"a", "b"}, captured.Body["input"])
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, resp.Embeddings)
}

func TestGenerateEmbedding_CountMismatch(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}],"usage":{}}`)

	p := NewOpenAICompatProvider("openai", "key", "gpt-4o-mini", ProviderOptions{BaseURL: srv.URL})
	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"a", "b"}})
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	system, turns := SplitSystem([]Message{
		{Role: RoleSystem, Content: "one"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "two"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "one\n\ntwo", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}, turns)
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.00015+0.0006, CalculateCost("gpt-4o-mini", 1000, 1000), 1e-12)
	assert.InDelta(t, CalculateCost("gpt-4o-mini", 500, 200), CalculateCost("openai/gpt-4o-mini", 500, 200), 1e-12)
	assert.Zero(t, CalculateCost("unknown-model", 1000, 1000))
}
