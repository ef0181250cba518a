package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/supabase"
)

func strPtr(value string) *string {
	return &value
}

func newRESTRepo(t *testing.T, handler http.HandlerFunc, pageSize int) SubmissionRecordRepository {
	t.Helper()
	return newRESTRepoWithTiebreak(t, handler, pageSize, "id")
}

func newRESTRepoWithTiebreak(t *testing.T, handler http.HandlerFunc, pageSize int, tiebreak string) SubmissionRecordRepository {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := supabase.NewClient(supabase.Config{URL: server.URL, APIKey: "key", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return NewRESTSubmissionRecordRepository(client, pageSize, tiebreak)
}

func TestRESTFetchAllPagesThroughCollection(t *testing.T) {
	total := 5
	var offsets []int
	repo := newRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, offset)
		assert.Equal(t, "created_at.asc,id.asc", r.URL.Query().Get("order"))

		body := "["
		for i := offset; i < total && i < offset+limit; i++ {
			if i > offset {
				body += ","
			}
			body += fmt.Sprintf(`{"student_id":%d,"created_at":"2024-01-0%dT10:00:00+00:00","feedback_1":"O: 정답","feedback_2":null}`, 100+i, i+1)
		}
		body += "]"
		_, _ = w.Write([]byte(body))
	}, 2)

	records, err := repo.FetchAll(context.Background(), "student_submissions")
	require.NoError(t, err)
	require.Len(t, records, total)
	require.Equal(t, []int{0, 2, 4}, offsets)
	require.Equal(t, models.StudentID("100"), records[0].StudentID)
	require.Equal(t, "O: 정답", *records[0].Feedback1)
	require.Nil(t, records[0].Feedback2)
	require.Nil(t, records[0].Answer1)
}

func TestRESTFetchAllOrdersTiedTimestampsByTiebreak(t *testing.T) {
	cases := []struct {
		name     string
		tiebreak string
		order    string
	}{
		{name: "default column", tiebreak: "id", order: "created_at.asc,id.asc"},
		{name: "custom column", tiebreak: " submission_id ", order: "created_at.asc,submission_id.asc"},
		{name: "disabled", tiebreak: "", order: "created_at.asc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var orders []string
			repo := newRESTRepoWithTiebreak(t, func(w http.ResponseWriter, r *http.Request) {
				orders = append(orders, r.URL.Query().Get("order"))
				if r.URL.Query().Get("offset") == "0" {
					_, _ = w.Write([]byte(`[{"student_id":1,"created_at":"2024-01-01T10:00:00Z"},{"student_id":2,"created_at":"2024-01-01T10:00:00Z"}]`))
					return
				}
				_, _ = w.Write([]byte(`[{"student_id":3,"created_at":"2024-01-01T10:00:00Z"}]`))
			}, 2, tc.tiebreak)

			records, err := repo.FetchAll(context.Background(), "student_submissions")
			require.NoError(t, err)
			require.Len(t, records, 3)
			require.Equal(t, []string{tc.order, tc.order}, orders, "every page uses the same total order")
		})
	}
}

func TestRESTFetchAllEmptyCollection(t *testing.T) {
	repo := newRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	records, err := repo.FetchAll(context.Background(), "student_submissions")
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestRESTFetchAllWrapsQueryFailures(t *testing.T) {
	repo := newRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"PGRST205","message":"Could not find the table 'public.typo' in the schema cache","hint":"Perhaps you meant the table 'public.student_submissions'"}`))
	}, 0)

	_, err := repo.FetchAll(context.Background(), "typo")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "typo", fetchErr.Collection)
	require.Equal(t, "PGRST205", fetchErr.Code)
	require.True(t, fetchErr.MissingCollection())
	require.False(t, fetchErr.AccessDenied())
	require.Contains(t, fetchErr.Hint, "student_submissions")

	var apiErr *supabase.APIError
	require.True(t, errors.As(err, &apiErr), "the underlying cause stays reachable")
}

func TestRESTSampleReturnsRawRows(t *testing.T) {
	repo := newRESTRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"student_id":"101","created_at":"2024-01-01T10:00:00+00:00","extra":true}]`))
	}, 0)

	rows, err := repo.Sample(context.Background(), "student_submissions", 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "101", rows[0]["student_id"])
	require.Equal(t, true, rows[0]["extra"])
}

func TestFetchErrorAccessDenied(t *testing.T) {
	err := newFetchError("student_submissions", &supabase.APIError{Status: http.StatusUnauthorized, Code: "42501", Message: "permission denied"})
	require.True(t, err.AccessDenied())
	require.False(t, err.MissingCollection())
	require.Contains(t, err.Error(), "permission denied")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Table("student_submissions").AutoMigrate(&models.SubmissionRecord{}))
	return db
}

func TestGormFetchAllReadsEveryRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSubmissionRecordRepository(db)

	rows := []models.SubmissionRecord{
		{StudentID: "202", CreatedAt: "2024-01-02T10:00:00Z", Model: strPtr("gpt-4o-mini")},
		{StudentID: "101", CreatedAt: "2024-01-01T10:00:00Z", Feedback1: strPtr("O: 정답")},
	}
	require.NoError(t, db.Table("student_submissions").Create(&rows).Error)

	records, err := repo.FetchAll(context.Background(), "student_submissions")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, models.StudentID("101"), records[0].StudentID)
	require.Equal(t, "O: 정답", *records[0].Feedback1)
	require.Nil(t, records[0].Feedback2)
	require.Equal(t, "gpt-4o-mini", records[1].ModelName())

	samples, err := repo.Sample(context.Background(), "student_submissions", 1)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Contains(t, samples[0], "student_id")
}

func TestGormFetchAllEmptyAndMissingTable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSubmissionRecordRepository(db)

	records, err := repo.FetchAll(context.Background(), "student_submissions")
	require.NoError(t, err)
	require.Empty(t, records)

	_, err = repo.FetchAll(context.Background(), "missing_table")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, "missing_table", fetchErr.Collection)
}
