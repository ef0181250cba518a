package main

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
)

type emptyRepo struct{}

func (emptyRepo) FetchAll(context.Context, string) ([]models.SubmissionRecord, error) {
	return []models.SubmissionRecord{}, nil
}

func (emptyRepo) Sample(context.Context, string, int) ([]map[string]interface{}, error) {
	return []map[string]interface{}{}, nil
}

func TestStoreConnectorClosesOpenedStore(t *testing.T) {
	closed := 0
	open := func(context.Context, config.Config, zerolog.Logger) (repository.SubmissionRecordRepository, func() error, error) {
		return emptyRepo{}, func() error {
			closed++
			return nil
		}, nil
	}

	connect, release := storeConnector(open, zerolog.Nop())
	repo, err := connect(context.Background(), config.Config{})
	require.NoError(t, err)
	require.NotNil(t, repo)

	require.NoError(t, release())
	require.NoError(t, release())
	require.Equal(t, 1, closed)
}

func TestStoreConnectorReleaseWithoutStore(t *testing.T) {
	refused := errors.New("connection refused")
	open := func(context.Context, config.Config, zerolog.Logger) (repository.SubmissionRecordRepository, func() error, error) {
		return nil, nil, refused
	}

	connect, release := storeConnector(open, zerolog.Nop())
	_, err := connect(context.Background(), config.Config{})
	require.ErrorIs(t, err, refused)
	require.NoError(t, release())
}
