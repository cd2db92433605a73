package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/revisionrag/internal/models"
)

// Record is one successful provider call.
type Record struct {
	UserID       string
	Provider     string
	Model        string
	TaskKind     string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
	LatencyMs    int64
}

// Reporter receives token usage after every successful generation call.
type Reporter interface {
	ReportUsage(ctx context.Context, r Record) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Record) error

func (f ReporterFunc) ReportUsage(ctx context.Context, r Record) error { return f(ctx, r) }

// LogReporter writes usage to the structured log only.
var LogReporter = ReporterFunc(func(_ context.Context, r Record) error {
	slog.Info("llm usage",
		"user_id", r.UserID,
		"provider", r.Provider,
		"model", r.Model,
		"task", r.TaskKind,
		"total_tokens", r.TotalTokens,
	)
	return nil
})

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) ReportUsage(ctx context.Context, r Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (user_id, provider, model, task_kind, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.UserID, r.Provider, r.Model, r.TaskKind, r.InputTokens, r.OutputTokens,
		r.TotalTokens, r.CostUSD, r.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("insert LLM usage log: %w", err)
	}
	return nil
}

type Summary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	TotalCalls   int     `json:"total_calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// GetUsageSummary totals a user's usage per provider and model.
func (s *Service) GetUsageSummary(ctx context.Context, userID string, startDate, endDate *time.Time) ([]Summary, error) {
	query := `SELECT provider, model, COUNT(*) AS total_calls,
			         COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0),
			         COALESCE(SUM(total_tokens), 0) AS total_tokens,
			         COALESCE(SUM(cost_usd), 0)::float8 AS total_cost_usd
			  FROM llm_usage_logs WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if startDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *startDate)
		argIdx++
	}
	if endDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *endDate)
	}

	query += " GROUP BY provider, model ORDER BY total_tokens DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var us Summary
		if err := rows.Scan(&us.Provider, &us.Model, &us.TotalCalls, &us.InputTokens, &us.OutputTokens, &us.TotalTokens, &us.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		summaries = append(summaries, us)
	}
	return summaries, rows.Err()
}

// Recent returns the user's latest usage rows.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]models.LLMUsageLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, provider, model, task_kind, input_tokens, output_tokens, total_tokens,
		        cost_usd::float8, latency_ms, created_at
		 FROM llm_usage_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []models.LLMUsageLog
	for rows.Next() {
		var l models.LLMUsageLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Provider, &l.Model, &l.TaskKind, &l.InputTokens,
			&l.OutputTokens, &l.TotalTokens, &l.CostUSD, &l.LatencyMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
