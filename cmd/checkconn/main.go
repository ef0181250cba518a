package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/database"
	"github.com/noah-isme/gema-feedback-dashboard/internal/diagnostic"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	os.Exit(run(logger))
}

func run(logger zerolog.Logger) int {
	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return 1
	}

	connect, closeStore := storeConnector(database.OpenSubmissionStore, logger)
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn().Err(err).Msg("failed to close submission store")
		}
	}()

	runner, err := diagnostic.NewRunner(connect, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare diagnostic")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SupabaseTimeout+15*time.Second)
	defer cancel()

	report := runner.Run(ctx, cfg)
	for i, row := range report.Sample {
		fmt.Fprintf(os.Stdout, "sample %d: student_id=%v created_at=%v\n", i+1, row["student_id"], row["created_at"])
	}

	if report.Failed() {
		logger.Error().Str("collection", report.Collection).Msg("connection check failed")
		return 1
	}
	logger.Info().Str("collection", report.Collection).Msg("connection check passed")
	return 0
}

// storeConnector adapts open to the diagnostic runner and returns a function
// that releases whatever store the runner opened.
func storeConnector(open database.StoreOpener, logger zerolog.Logger) (diagnostic.Connector, func() error) {
	var closeFn func() error
	connect := func(ctx context.Context, cfg config.Config) (repository.SubmissionRecordRepository, error) {
		repo, closer, err := open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		closeFn = closer
		return repo, nil
	}
	release := func() error {
		if closeFn == nil {
			return nil
		}
		closer := closeFn
		closeFn = nil
		return closer()
	}
	return connect, release
}
