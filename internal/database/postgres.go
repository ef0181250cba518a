package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
)

// ConnectPostgres opens the Supabase Postgres database directly using the
// provided DSN and checks that it answers.
func ConnectPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, &config.ConfigError{Missing: []string{config.EnvDatabaseURL}}
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, &ConnectionError{Target: "postgres", Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &ConnectionError{Target: "postgres", Err: fmt.Errorf("obtain sql handle: %w", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, &ConnectionError{Target: "postgres", Err: err}
	}

	return db, nil
}
