// Package cache keeps fetched submission collections for a bounded time so
// repeated dashboard requests do not hit the data store every time.
package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
)

// DefaultTTL is how long a fetched collection stays fresh.
const DefaultTTL = 60 * time.Second

// FetchFunc loads a collection from the data store.
type FetchFunc func(ctx context.Context) ([]models.SubmissionRecord, error)

// SubmissionCache stores collections by key.
type SubmissionCache interface {
	// GetOrFetch returns the cached collection for key, calling fetch on a
	// miss. The boolean reports a cache hit. Fetch errors are returned as is
	// and nothing is stored.
	GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]models.SubmissionRecord, bool, error)
	// InvalidateAll drops every entry.
	InvalidateAll(ctx context.Context) error
}

// shareFetch runs fn once for concurrent misses of key within one cache
// generation. fn runs detached from the caller's cancellation so a caller
// that goes away does not fail the others waiting on it; each caller still
// stops waiting when its own ctx is done.
func shareFetch(ctx context.Context, group *singleflight.Group, key string, generation uint64, fn func(context.Context) ([]models.SubmissionRecord, error)) ([]models.SubmissionRecord, error) {
	fetchCtx := context.WithoutCancel(ctx)
	results := group.DoChan(fmt.Sprintf("%s#%d", key, generation), func() (interface{}, error) {
		return fn(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.([]models.SubmissionRecord), nil
	}
}

func cloneRecords(records []models.SubmissionRecord) []models.SubmissionRecord {
	if records == nil {
		return []models.SubmissionRecord{}
	}
	out := make([]models.SubmissionRecord, len(records))
	copy(out, records)
	return out
}
