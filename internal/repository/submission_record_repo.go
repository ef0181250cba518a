package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/observability"
	"github.com/noah-isme/gema-feedback-dashboard/internal/supabase"
)

// DefaultPageSize matches the row cap Supabase applies to a single REST response.
// A page size above the server's max-rows setting loses rows: the first
// capped page looks short and ends the paging loop.
const DefaultPageSize = 1000

// SubmissionRecordRepository reads student submissions from the hosted store.
// No filtering happens remotely.
type SubmissionRecordRepository interface {
	// FetchAll returns every row of collection; an empty collection yields an
	// empty slice. Query failures are reported as *FetchError.
	FetchAll(ctx context.Context, collection string) ([]models.SubmissionRecord, error)
	// Sample returns up to limit raw rows for diagnostics.
	Sample(ctx context.Context, collection string, limit int) ([]map[string]interface{}, error)
}

type restSubmissionRecordRepository struct {
	client   *supabase.Client
	pageSize int
	order    string
}

// NewRESTSubmissionRecordRepository reads through the Supabase REST interface,
// paging with pageSize rows per request. Pages are ordered by created_at and
// then by tiebreak, which must be a unique column so rows sharing a timestamp
// keep their position across pages. An empty tiebreak orders by created_at only.
func NewRESTSubmissionRecordRepository(client *supabase.Client, pageSize int, tiebreak string) SubmissionRecordRepository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &restSubmissionRecordRepository{client: client, pageSize: pageSize, order: pageOrder(tiebreak)}
}

func pageOrder(tiebreak string) string {
	tiebreak = strings.TrimSpace(tiebreak)
	if tiebreak == "" {
		return "created_at.asc"
	}
	return "created_at.asc," + tiebreak + ".asc"
}

func (r *restSubmissionRecordRepository) FetchAll(ctx context.Context, collection string) ([]models.SubmissionRecord, error) {
	start := time.Now()
	records, err := r.fetchAll(ctx, collection)
	observeFetch(StoreDriverREST, start, err)
	return records, err
}

func (r *restSubmissionRecordRepository) fetchAll(ctx context.Context, collection string) ([]models.SubmissionRecord, error) {
	records := make([]models.SubmissionRecord, 0)
	for offset := 0; ; offset += r.pageSize {
		rows, err := r.client.Select(ctx, collection, r.order, r.pageSize, offset)
		if err != nil {
			return nil, newFetchError(collection, err)
		}

		for _, raw := range rows {
			var record models.SubmissionRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				return nil, newFetchError(collection, fmt.Errorf("decode row: %w", err))
			}
			records = append(records, record)
		}

		if len(rows) < r.pageSize {
			return records, nil
		}
	}
}

func (r *restSubmissionRecordRepository) Sample(ctx context.Context, collection string, limit int) ([]map[string]interface{}, error) {
	rows, err := r.client.Select(ctx, collection, "", limit, 0)
	if err != nil {
		return nil, newFetchError(collection, err)
	}

	samples := make([]map[string]interface{}, 0, len(rows))
	for _, raw := range rows {
		var sample map[string]interface{}
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, newFetchError(collection, fmt.Errorf("decode row: %w", err))
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

type gormSubmissionRecordRepository struct {
	db *gorm.DB
}

// NewGormSubmissionRecordRepository reads submissions straight from Postgres.
func NewGormSubmissionRecordRepository(db *gorm.DB) SubmissionRecordRepository {
	return &gormSubmissionRecordRepository{db: db}
}

func (r *gormSubmissionRecordRepository) FetchAll(ctx context.Context, collection string) ([]models.SubmissionRecord, error) {
	start := time.Now()
	records := make([]models.SubmissionRecord, 0)
	err := r.db.WithContext(ctx).
		Table(collection).
		Order("created_at ASC").
		Find(&records).Error
	observeFetch(StoreDriverPostgres, start, err)
	if err != nil {
		return nil, newFetchError(collection, err)
	}
	return records, nil
}

func (r *gormSubmissionRecordRepository) Sample(ctx context.Context, collection string, limit int) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0)
	query := r.db.WithContext(ctx).Table(collection)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, newFetchError(collection, err)
	}

	// Round-trip through JSON so values look the same as REST rows.
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, newFetchError(collection, fmt.Errorf("encode sample: %w", err))
	}
	samples := make([]map[string]interface{}, 0, len(rows))
	if err := json.Unmarshal(payload, &samples); err != nil {
		return nil, newFetchError(collection, fmt.Errorf("decode sample: %w", err))
	}
	return samples, nil
}

// Store driver labels used in metrics.
const (
	StoreDriverREST     = "rest"
	StoreDriverPostgres = "postgres"
)

func observeFetch(driver string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.StoreFetches().WithLabelValues(driver, result).Inc()
	observability.StoreFetchDuration().WithLabelValues(driver).Observe(time.Since(start).Seconds())
}
