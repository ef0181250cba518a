package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
)

type countingFetcher struct {
	calls   int
	records []models.SubmissionRecord
	err     error
}

func (f *countingFetcher) fetch(context.Context) ([]models.SubmissionRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.SubmissionRecord(nil), f.records...), nil
}

func sampleRecords() []models.SubmissionRecord {
	feedback := "O: 정답"
	return []models.SubmissionRecord{
		{StudentID: "101", CreatedAt: "2024-01-01T10:00:00Z", Feedback1: &feedback},
		{StudentID: "202", CreatedAt: "2024-01-02T10:00:00Z"},
	}
}

func TestMemoryCacheServesWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Minute, zerolog.Nop())
	c.now = func() time.Time { return now }
	fetcher := &countingFetcher{records: sampleRecords()}
	ctx := context.Background()

	records, hit, err := c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, records, 2)

	records, hit, err = c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, records, 2)
	require.Equal(t, 1, fetcher.calls)

	now = now.Add(time.Minute)
	_, hit, err = c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit, "entries expire once the ttl elapses")
	require.Equal(t, 2, fetcher.calls)
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	c := NewMemoryCache(time.Minute, zerolog.Nop())
	fetcher := &countingFetcher{records: sampleRecords()}
	ctx := context.Background()

	_, _, err := c.GetOrFetch(ctx, "a", fetcher.fetch)
	require.NoError(t, err)
	_, _, err = c.GetOrFetch(ctx, "b", fetcher.fetch)
	require.NoError(t, err)
	require.NoError(t, c.InvalidateAll(ctx))

	_, hit, err := c.GetOrFetch(ctx, "a", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = c.GetOrFetch(ctx, "b", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 4, fetcher.calls)
}

// blockingFetch returns records once release is closed and reports on started
// when it begins.
func blockingFetch(records []models.SubmissionRecord, started chan<- struct{}, release <-chan struct{}) FetchFunc {
	return func(context.Context) ([]models.SubmissionRecord, error) {
		close(started)
		<-release
		return records, nil
	}
}

func staleRecords() []models.SubmissionRecord {
	return []models.SubmissionRecord{{StudentID: "stale", CreatedAt: "2023-12-31T10:00:00Z"}}
}

func assertInvalidateDiscardsInFlightFetch(t *testing.T, c SubmissionCache) {
	t.Helper()
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan []models.SubmissionRecord, 1)
	go func() {
		records, hit, err := c.GetOrFetch(ctx, "k", blockingFetch(staleRecords(), started, release))
		assert.NoError(t, err)
		assert.False(t, hit)
		done <- records
	}()
	<-started

	require.NoError(t, c.InvalidateAll(ctx))

	fresh := &countingFetcher{records: sampleRecords()}
	records, hit, err := c.GetOrFetch(ctx, "k", fresh.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, models.StudentID("101"), records[0].StudentID, "a request after invalidation does not join the earlier fetch")
	require.Equal(t, 1, fresh.calls)

	close(release)
	require.Equal(t, models.StudentID("stale"), (<-done)[0].StudentID)

	records, hit, err = c.GetOrFetch(ctx, "k", fresh.fetch)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, models.StudentID("101"), records[0].StudentID, "the earlier fetch must not overwrite the refreshed entry")
	require.Equal(t, 1, fresh.calls)
}

func assertSharedFetchOutlivesCancelledCaller(t *testing.T, c SubmissionCache) {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErrs := make(chan error, 1)
	fetch := func(ctx context.Context) ([]models.SubmissionRecord, error) {
		close(started)
		<-release
		fetchErrs <- ctx.Err()
		return sampleRecords(), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	callerErrs := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrFetch(ctx, "k", fetch)
		callerErrs <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-callerErrs, context.Canceled)

	close(release)
	require.NoError(t, <-fetchErrs, "the shared fetch keeps running after its first caller leaves")

	unused := &countingFetcher{err: errors.New("should not be called")}
	require.Eventually(t, func() bool {
		_, hit, err := c.GetOrFetch(context.Background(), "k", unused.fetch)
		return err == nil && hit
	}, time.Second, 10*time.Millisecond)
	require.Zero(t, unused.calls)
}

func TestMemoryCacheInvalidateAllDiscardsInFlightFetch(t *testing.T) {
	assertInvalidateDiscardsInFlightFetch(t, NewMemoryCache(time.Minute, zerolog.Nop()))
}

func TestMemoryCacheSharedFetchOutlivesCancelledCaller(t *testing.T) {
	assertSharedFetchOutlivesCancelledCaller(t, NewMemoryCache(time.Minute, zerolog.Nop()))
}

func TestMemoryCacheDoesNotStoreFailures(t *testing.T) {
	c := NewMemoryCache(time.Minute, zerolog.Nop())
	boom := errors.New("boom")
	fetcher := &countingFetcher{err: boom}
	ctx := context.Background()

	_, _, err := c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.ErrorIs(t, err, boom)

	fetcher.err = nil
	fetcher.records = sampleRecords()
	records, hit, err := c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, records, 2)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute, zerolog.Nop())
	fetcher := &countingFetcher{records: sampleRecords()}
	ctx := context.Background()

	records, _, err := c.GetOrFetch(ctx, "k", fetcher.fetch)
	require.NoError(t, err)
	records[0].StudentID = "changed"

	cached, hit, err := c.GetOrFetch(ctx, "k", fetcher.fetch)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, models.StudentID("101"), cached[0].StudentID)
}

func TestMemoryCacheEmptyCollection(t *testing.T) {
	c := NewMemoryCache(0, zerolog.Nop())
	fetcher := &countingFetcher{}

	records, _, err := c.GetOrFetch(context.Background(), "k", fetcher.fetch)
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
	require.Equal(t, DefaultTTL, c.ttl)
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, "", time.Minute, zerolog.Nop()), server
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, server := newRedisCache(t)
	fetcher := &countingFetcher{records: sampleRecords()}
	ctx := context.Background()

	records, hit, err := c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.True(t, server.Exists(DefaultKeyPrefix+"student_submissions"))

	cached, hit, err := c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, records, cached)
	require.NotNil(t, cached[0].Feedback1)
	require.Nil(t, cached[1].Feedback1)
	require.Equal(t, 1, fetcher.calls)

	server.FastForward(time.Minute + time.Second)
	_, hit, err = c.GetOrFetch(ctx, "student_submissions", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, fetcher.calls)
}

func TestRedisCacheInvalidateAllKeepsForeignKeys(t *testing.T) {
	c, server := newRedisCache(t)
	fetcher := &countingFetcher{records: sampleRecords()}
	ctx := context.Background()

	require.NoError(t, server.Set("other:key", "keep"))
	_, _, err := c.GetOrFetch(ctx, "a", fetcher.fetch)
	require.NoError(t, err)
	_, _, err = c.GetOrFetch(ctx, "b", fetcher.fetch)
	require.NoError(t, err)

	require.NoError(t, c.InvalidateAll(ctx))
	require.False(t, server.Exists(DefaultKeyPrefix+"a"))
	require.False(t, server.Exists(DefaultKeyPrefix+"b"))
	require.True(t, server.Exists("other:key"))
}

func TestRedisCacheFallsBackWhenRedisIsDown(t *testing.T) {
	c, server := newRedisCache(t)
	fetcher := &countingFetcher{records: sampleRecords()}
	server.Close()

	records, hit, err := c.GetOrFetch(context.Background(), "k", fetcher.fetch)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, records, 2)
}

func TestRedisCacheInvalidateAllDiscardsInFlightFetch(t *testing.T) {
	c, _ := newRedisCache(t)
	assertInvalidateDiscardsInFlightFetch(t, c)
}

func TestRedisCacheSharedFetchOutlivesCancelledCaller(t *testing.T) {
	c, _ := newRedisCache(t)
	assertSharedFetchOutlivesCancelledCaller(t, c)
}
