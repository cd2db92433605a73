package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/revisionrag/internal/models"
)

type PgSettingsStore struct {
	db *pgxpool.Pool
}

func NewPgSettingsStore(db *pgxpool.Pool) *PgSettingsStore {
	return &PgSettingsStore{db: db}
}

// Get returns nil, nil when the user has no stored settings.
func (s *PgSettingsStore) Get(ctx context.Context, userID string) (*models.UserSettings, error) {
	var (
		us  models.UserSettings
		raw []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT user_id, preferred_provider, preferred_model, api_keys, updated_at
		 FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&us.UserID, &us.PreferredProvider, &us.PreferredModel, &raw, &us.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	if err := us.DecodeKeys(raw); err != nil {
		return nil, fmt.Errorf("decode api keys: %w", err)
	}
	return &us, nil
}

// Upsert replaces the preference fields and merges apiKeys into the stored
// set. An empty key value removes that provider's key.
func (s *PgSettingsStore) Upsert(ctx context.Context, us *models.UserSettings) error {
	set := map[string]string{}
	remove := []string{}
	for provider, key := range us.APIKeys {
		if key == "" {
			remove = append(remove, provider)
			continue
		}
		set[provider] = key
	}
	keys, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal api keys: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO user_settings (user_id, preferred_provider, preferred_model, api_keys, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		   preferred_provider = EXCLUDED.preferred_provider,
		   preferred_model = EXCLUDED.preferred_model,
		   api_keys = (user_settings.api_keys || EXCLUDED.api_keys) - $5::text[],
		   updated_at = now()`,
		us.UserID, us.PreferredProvider, us.PreferredModel, string(keys), remove,
	)
	if err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}
	return nil
}
