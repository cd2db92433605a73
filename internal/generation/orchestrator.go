package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/credentials"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/prompt"
	"github.com/nikhilbhutani/revisionrag/internal/usage"
)

// ProviderFactory builds the chat adapter for a resolved provider and key.
type ProviderFactory func(provider, apiKey string) (llm.Provider, error)

// DefaultFactory dispatches through the llm registry with opts.
func DefaultFactory(opts llm.ProviderOptions) ProviderFactory {
	return func(provider, apiKey string) (llm.Provider, error) {
		return llm.NewProvider(provider, apiKey, opts)
	}
}

type OrchestratorOptions struct {
	MaxTokens   int
	Temperature float64
	// MaxHistory bounds the tutor-chat turns sent to the provider.
	MaxHistory int
}

type Orchestrator struct {
	newProvider ProviderFactory
	usage       usage.Reporter
	opts        OrchestratorOptions
}

func NewOrchestrator(factory ProviderFactory, reporter usage.Reporter, opts OrchestratorOptions) *Orchestrator {
	if reporter == nil {
		reporter = usage.LogReporter
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 20
	}
	return &Orchestrator{newProvider: factory, usage: reporter, opts: opts}
}

// Generate prompts the resolved provider with contextText for task and
// returns the typed result. A missing key fails before any request is made.
func (o *Orchestrator) Generate(ctx context.Context, task Task, contextText string, p Params, creds credentials.Resolved) (*Result, error) {
	if !task.Valid() {
		return nil, apperr.Validation("task", "unknown task %q", task)
	}
	if !creds.HasKey() {
		return nil, llm.MissingKey(creds.Provider)
	}
	p, err := p.normalize(task)
	if err != nil {
		return nil, err
	}

	messages, err := o.buildMessages(task, contextText, p)
	if err != nil {
		return nil, err
	}

	provider, err := o.newProvider(creds.Provider, creds.APIKey)
	if err != nil {
		return nil, err
	}

	resp, err := provider.ChatCompletion(ctx, llm.ChatRequest{
		Model:       creds.Model,
		Messages:    messages,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		slog.Warn("generation call failed", "task", task, "provider", creds.Provider, "error", err)
		return nil, fmt.Errorf("generate %s: %w", task, err)
	}

	if err := o.usage.ReportUsage(ctx, usage.Record{
		UserID:       p.UserID,
		Provider:     resp.Provider,
		Model:        resp.Model,
		TaskKind:     string(task),
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.TotalTokens,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.LatencyMs,
	}); err != nil {
		slog.Error("failed to report usage", "user_id", p.UserID, "error", err)
	}

	res := &Result{
		Task:       task,
		Status:     StatusOK,
		TokensUsed: resp.TotalTokens,
		Provider:   resp.Provider,
		Model:      resp.Model,
	}

	switch task {
	case TaskFlashcards:
		cards, err := ParseFlashcards(resp.Content)
		if err != nil {
			return nil, err
		}
		res.Flashcards = cards
	case TaskQuiz:
		qs, err := ParseQuiz(resp.Content)
		if err != nil {
			return nil, err
		}
		res.Questions = qs
	default:
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			res.Markdown = fallbackMarkdown(task)
			res.Fallback = true
		} else {
			res.Markdown = text
		}
	}
	return res, nil
}

func (o *Orchestrator) buildMessages(task Task, contextText string, p Params) ([]llm.Message, error) {
	focus := ""
	if p.Query != "" && task != TaskTutorChat {
		focus = "Focus on: " + p.Query
	}
	system, user, err := prompt.Build(string(task), map[string]string{
		"context":        contextText,
		"count":          strconv.Itoa(p.Count),
		"difficulty":     p.Difficulty,
		"style":          p.Style,
		"academic_level": p.AcademicLevel,
		"focus":          focus,
		"query":          p.Query,
	})
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	if task == TaskTutorChat {
		if strings.TrimSpace(p.Query) == "" {
			return nil, apperr.Validation("query", "is required for tutor chat")
		}
		history := p.History
		if len(history) > o.opts.MaxHistory {
			history = history[len(history)-o.opts.MaxHistory:]
		}
		for _, m := range history {
			if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
				messages = append(messages, m)
			}
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: user})
	return messages, nil
}

var fallbackTitles = map[Task]string{
	TaskNotes:             "Revision notes",
	TaskPracticeExercises: "Practice exercises",
	TaskPastPaperAnalysis: "Past paper analysis",
	TaskTutorChat:         "Tutor reply",
}

func fallbackMarkdown(task Task) string {
	return fmt.Sprintf(`> **Fallback content:** the AI provider returned an empty response, so nothing was generated.

## %s

- Your uploaded material was retrieved successfully.
- Try generating again, or choose a different model in Settings.
`, fallbackTitles[task])
}
