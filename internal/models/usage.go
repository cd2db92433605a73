package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LLMUsageLog struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Provider     string    `json:"provider" db:"provider"`
	Model        string    `json:"model" db:"model"`
	TaskKind     string    `json:"task_kind" db:"task_kind"`
	InputTokens  int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens int       `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int       `json:"total_tokens" db:"total_tokens"`
	CostUSD      float64   `json:"cost_usd" db:"cost_usd"`
	LatencyMs    int       `json:"latency_ms" db:"latency_ms"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserSettings is the stored preference tier for provider credentials.
type UserSettings struct {
	UserID            string            `json:"user_id" db:"user_id"`
	PreferredProvider string            `json:"preferred_provider" db:"preferred_provider"`
	PreferredModel    string            `json:"preferred_model" db:"preferred_model"`
	APIKeys           map[string]string `json:"-" db:"api_keys"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

func (s *UserSettings) DecodeKeys(raw []byte) error {
	if len(raw) == 0 {
		s.APIKeys = map[string]string{}
		return nil
	}
	return json.Unmarshal(raw, &s.APIKeys)
}
