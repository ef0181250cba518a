package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/observability"
)

type memoryEntry struct {
	records   []models.SubmissionRecord
	expiresAt time.Time
}

// MemoryCache is a process-wide SubmissionCache.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	generation uint64
	ttl        time.Duration
	group      singleflight.Group
	logger     zerolog.Logger
	now        func() time.Time
}

// NewMemoryCache builds an in-process cache. A non-positive ttl uses DefaultTTL.
func NewMemoryCache(ttl time.Duration, logger zerolog.Logger) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: map[string]memoryEntry{},
		ttl:     ttl,
		logger:  logger.With().Str("component", "memory_cache").Logger(),
		now:     time.Now,
	}
}

func (c *MemoryCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]models.SubmissionRecord, bool, error) {
	if records, ok := c.lookup(key); ok {
		observability.CacheRequests().WithLabelValues("memory", "hit").Inc()
		return records, true, nil
	}
	observability.CacheRequests().WithLabelValues("memory", "miss").Inc()

	generation := c.currentGeneration()
	records, err := shareFetch(ctx, &c.group, key, generation, func(fetchCtx context.Context) ([]models.SubmissionRecord, error) {
		records, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, records, generation)
		return records, nil
	})
	if err != nil {
		return nil, false, err
	}

	return cloneRecords(records), false, nil
}

func (c *MemoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = map[string]memoryEntry{}
	c.generation++
	c.mu.Unlock()

	c.logger.Debug().Int("entries", dropped).Msg("cache invalidated")
	return nil
}

func (c *MemoryCache) lookup(key string) ([]models.SubmissionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return cloneRecords(entry.records), true
}

func (c *MemoryCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// store keeps records unless the cache was invalidated after the fetch began.
func (c *MemoryCache) store(key string, records []models.SubmissionRecord, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != generation {
		c.logger.Debug().Str("key", key).Msg("discarding fetch started before invalidation")
		return
	}
	c.entries[key] = memoryEntry{
		records:   cloneRecords(records),
		expiresAt: c.now().Add(c.ttl),
	}
}
