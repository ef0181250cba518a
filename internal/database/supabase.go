package database

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/supabase"
)

// ConnectSupabase builds a REST client for the project at url and verifies
// that the endpoint answers with the given service key.
func ConnectSupabase(ctx context.Context, url, serviceKey string, timeout time.Duration, logger zerolog.Logger) (*supabase.Client, error) {
	var missing []string
	if strings.TrimSpace(url) == "" {
		missing = append(missing, config.EnvSupabaseURL)
	}
	if strings.TrimSpace(serviceKey) == "" {
		missing = append(missing, config.EnvSupabaseServiceRoleKey)
	}
	if len(missing) > 0 {
		return nil, &config.ConfigError{Missing: missing}
	}

	client, err := supabase.NewClient(supabase.Config{
		URL:     url,
		APIKey:  serviceKey,
		Timeout: timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, &config.ConfigError{Err: err}
	}

	if err := client.Ping(ctx); err != nil {
		return nil, &ConnectionError{Target: "supabase", Err: err}
	}

	return client, nil
}
