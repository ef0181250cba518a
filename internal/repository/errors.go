package repository

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/gema-feedback-dashboard/internal/supabase"
)

// FetchError reports a failed query against a collection. Status and Code
// are filled when the store returned a structured error.
type FetchError struct {
	Collection string
	Status     int
	Code       string
	Hint       string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MissingCollection reports whether the store said the collection does not exist.
func (e *FetchError) MissingCollection() bool {
	switch e.Code {
	case "42P01", "PGRST205", "PGRST106":
		return true
	}
	return e.Status == http.StatusNotFound
}

// AccessDenied reports whether the store refused the query for lack of privileges.
func (e *FetchError) AccessDenied() bool {
	if e.Code == "42501" {
		return true
	}
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func newFetchError(collection string, err error) *FetchError {
	fetchErr := &FetchError{Collection: collection, Err: err}

	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		fetchErr.Status = apiErr.Status
		fetchErr.Code = apiErr.Code
		fetchErr.Hint = apiErr.Hint
	}

	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		fetchErr.Code = pgErr.SQLState()
	}

	return fetchErr
}
