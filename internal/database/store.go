package database

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
)

// OpenSubmissionStore connects the store selected by cfg.StoreDriver and
// returns a repository over it. The returned close function releases the
// underlying connection.
func OpenSubmissionStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (repository.SubmissionRecordRepository, func() error, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, nil, err
	}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, &ConnectionError{Target: "postgres", Err: err}
		}
		logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to submission store")
		return repository.NewGormSubmissionRecordRepository(db), sqlDB.Close, nil
	default:
		client, err := ConnectSupabase(ctx, cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("driver", config.StoreDriverREST).Msg("connected to submission store")
		return repository.NewRESTSubmissionRecordRepository(client, cfg.PageSize, cfg.TiebreakColumn), func() error { return nil }, nil
	}
}

// StoreOpener matches OpenSubmissionStore.
type StoreOpener func(ctx context.Context, cfg config.Config, logger zerolog.Logger) (repository.SubmissionRecordRepository, func() error, error)

// LazySubmissionStore opens the store on first use. A failed attempt is
// returned to the caller and the next call tries again, so configuration
// and connection problems surface per request instead of at startup.
type LazySubmissionStore struct {
	cfg    config.Config
	logger zerolog.Logger
	open   StoreOpener
	dials  singleflight.Group

	mu      sync.Mutex
	repo    repository.SubmissionRecordRepository
	close   func() error
	lastErr error
}

// NewLazySubmissionStore defers OpenSubmissionStore until the first query.
func NewLazySubmissionStore(cfg config.Config, logger zerolog.Logger) *LazySubmissionStore {
	return &LazySubmissionStore{
		cfg:    cfg,
		logger: logger.With().Str("component", "submission_store").Logger(),
		open:   OpenSubmissionStore,
	}
}

func (s *LazySubmissionStore) FetchAll(ctx context.Context, collection string) ([]models.SubmissionRecord, error) {
	repo, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FetchAll(ctx, collection)
}

func (s *LazySubmissionStore) Sample(ctx context.Context, collection string, limit int) ([]map[string]interface{}, error) {
	repo, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return repo.Sample(ctx, collection, limit)
}

// Close releases the connection if one was opened.
func (s *LazySubmissionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.close == nil {
		return nil
	}
	err := s.close()
	s.repo = nil
	s.close = nil
	return err
}

// get returns the open repository or dials it. Concurrent callers share one
// dial, and the mutex is never held across it.
func (s *LazySubmissionStore) get(ctx context.Context) (repository.SubmissionRecordRepository, error) {
	if repo := s.current(); repo != nil {
		return repo, nil
	}

	value, err, _ := s.dials.Do("open", func() (interface{}, error) {
		if repo := s.current(); repo != nil {
			return repo, nil
		}

		repo, closeFn, err := s.open(context.WithoutCancel(ctx), s.cfg, s.logger)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.lastErr = err
			s.logger.Error().Err(err).Str("driver", s.cfg.StoreDriver).Msg("failed to open submission store")
			return nil, err
		}
		s.repo = repo
		s.close = closeFn
		s.lastErr = nil
		return repo, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(repository.SubmissionRecordRepository), nil
}

func (s *LazySubmissionStore) current() repository.SubmissionRecordRepository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo
}

// Status reports whether the store is open and the error of the last failed
// attempt, if any.
func (s *LazySubmissionStore) Status() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo != nil, s.lastErr
}
