package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatProvider speaks the OpenAI chat and embeddings API. OpenRouter
// and Grok expose the same wire format under a different base URL.
type OpenAICompatProvider struct {
	name         string
	defaultModel string
	client       *openai.Client
}

func newOpenAICompat(name, apiKey, defaultModel string, opts ProviderOptions) Provider {
	return NewOpenAICompatProvider(name, apiKey, defaultModel, opts)
}

func NewOpenAICompatProvider(name, apiKey, defaultModel string, opts ProviderOptions) *OpenAICompatProvider {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = opts.httpClient()

	return &OpenAICompatProvider{
		name:         name,
		defaultModel: defaultModel,
		client:       openai.NewClientWithConfig(cfg),
	}
}

func (p *OpenAICompatProvider) Name() string { return p.name }

func (p *OpenAICompatProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAICompatProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	oReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		oReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, classify(p.name, err))
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	if resp.Model != "" {
		model = resp.Model
	}

	return &ChatResponse{
		ID:           resp.ID,
		Provider:     p.name,
		Model:        model,
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		CostUSD:      CalculateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAICompatProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	oReq := openai.EmbeddingRequest{
		Input:      req.Input,
		Model:      openai.EmbeddingModel(model),
		Dimensions: req.Dimensions,
	}

	resp, err := p.client.CreateEmbeddings(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%s embedding: %w", p.name, classify(p.name, err))
	}

	if len(resp.Data) != len(req.Input) {
		return nil, fmt.Errorf("%s embedding: got %d vectors for %d inputs", p.name, len(resp.Data), len(req.Input))
	}

	// The API tags each vector with its input index; order by it rather than
	// trusting response order.
	embeddings := make([][]float32, len(req.Input))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(embeddings) || embeddings[idx] != nil {
			idx = i
		}
		embeddings[idx] = d.Embedding
	}

	return &EmbeddingResponse{
		Provider:   p.name,
		Model:      model,
		Embeddings: embeddings,
		Tokens:     resp.Usage.TotalTokens,
		CostUSD:    CalculateCost(model, resp.Usage.PromptTokens, 0),
	}, nil
}
