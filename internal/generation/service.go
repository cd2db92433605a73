package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/revisionrag/internal/apperr"
	"github.com/nikhilbhutani/revisionrag/internal/credentials"
	"github.com/nikhilbhutani/revisionrag/internal/guardrails"
	"github.com/nikhilbhutani/revisionrag/internal/llm"
	"github.com/nikhilbhutani/revisionrag/internal/rag"
)

// Request is one user-triggered generation. Exactly one of CollectionID or
// Content supplies the material.
type Request struct {
	Task          Task
	UserID        string
	CollectionID  string
	Content       string
	Query         string
	History       []llm.Message
	Count         int
	Difficulty    string
	Style         string
	AcademicLevel string
	Override      credentials.Override
}

type ServiceOptions struct {
	// QueryLimit is the number of chunks retrieved for a query.
	QueryLimit int
	// DocumentLimit is the number of chunks retrieved per document when the
	// whole collection is used.
	DocumentLimit int
	// MaxContentChars caps caller-supplied content.
	MaxContentChars int
	// Guard screens the typed query. Nil uses guardrails.Default.
	Guard *guardrails.Pipeline
}

type Service struct {
	resolver     *credentials.Resolver
	assembler    *rag.Assembler
	orchestrator *Orchestrator
	opts         ServiceOptions
}

func NewService(resolver *credentials.Resolver, assembler *rag.Assembler, orchestrator *Orchestrator, opts ServiceOptions) *Service {
	if opts.QueryLimit <= 0 {
		opts.QueryLimit = 8
	}
	if opts.DocumentLimit <= 0 {
		opts.DocumentLimit = 20
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 24000
	}
	if opts.Guard == nil {
		opts.Guard = guardrails.Default()
	}
	return &Service{resolver: resolver, assembler: assembler, orchestrator: orchestrator, opts: opts}
}

// Run resolves credentials once, assembles context and orchestrates the
// call. When retrieval finds nothing the provider is not called and the
// result carries StatusInsufficientContext.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if !req.Task.Valid() {
		return nil, apperr.Validation("task", "unknown task %q", req.Task)
	}
	if req.CollectionID == "" && strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("collection_id", "either collection_id or content is required")
	}
	if req.Task == TaskTutorChat && strings.TrimSpace(req.Query) == "" {
		return nil, apperr.Validation("query", "is required for tutor chat")
	}
	if strings.TrimSpace(req.Query) != "" {
		verdict, err := s.opts.Guard.Check(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		if !verdict.Allowed {
			slog.Warn("query blocked", "user_id", req.UserID, "flags", verdict.Flags)
			return nil, apperr.Validation("query", "%s", verdict.Reason)
		}
	}

	creds, err := s.resolver.Resolve(ctx, req.UserID, req.Override)
	if err != nil {
		return nil, err
	}
	if !creds.HasKey() {
		return nil, llm.MissingKey(creds.Provider)
	}

	assembled, err := s.assemble(ctx, req)
	if err != nil {
		return nil, err
	}
	if assembled.Empty() {
		slog.Info("no context for generation", "task", req.Task, "user_id", req.UserID, "collection_id", req.CollectionID)
		return &Result{
			Task:    req.Task,
			Status:  StatusInsufficientContext,
			Message: "No study material matched this request. Upload material to this collection first.",
		}, nil
	}

	res, err := s.orchestrator.Generate(ctx, req.Task, assembled.Text, Params{
		UserID:        req.UserID,
		Count:         req.Count,
		Difficulty:    req.Difficulty,
		Style:         req.Style,
		AcademicLevel: req.AcademicLevel,
		Query:         req.Query,
		History:       req.History,
	}, creds)
	if err != nil {
		return nil, err
	}

	res.ChunkCount = assembled.ChunkCount
	res.DocumentCount = assembled.DocumentCount
	res.Truncated = assembled.Truncated
	return res, nil
}

func (s *Service) assemble(ctx context.Context, req Request) (*rag.Context, error) {
	if content := strings.TrimSpace(req.Content); content != "" {
		runes := []rune(content)
		truncated := len(runes) > s.opts.MaxContentChars
		if truncated {
			content = string(runes[:s.opts.MaxContentChars])
		}
		return &rag.Context{Text: content, ChunkCount: 1, Truncated: truncated}, nil
	}

	scope := rag.Scope{OwnerID: req.UserID, CollectionID: req.CollectionID, Kind: req.Task.Kind()}
	var (
		c   *rag.Context
		err error
	)
	if strings.TrimSpace(req.Query) != "" {
		c, err = s.assembler.ForQuery(ctx, scope, req.Query, s.opts.QueryLimit)
	} else {
		c, err = s.assembler.ForCollection(ctx, scope, s.opts.DocumentLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	return c, nil
}
