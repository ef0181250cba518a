// Package supabase is a small read-only client for the Supabase REST
// (PostgREST) interface.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	restPath = "/rest/v1/"
	// DefaultTimeout bounds a single REST request.
	DefaultTimeout = 15 * time.Second
)

// Config configures a Client.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues REST requests against one Supabase project.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase responded %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// NewClient validates cfg and builds a client. It performs no network I/O.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("supabase api key is required")
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid supabase url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid supabase url %q: scheme must be http or https", cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    httpClient,
		tracer:  otel.Tracer("github.com/noah-isme/gema-feedback-dashboard/internal/supabase"),
		logger:  cfg.Logger.With().Str("component", "supabase_client").Logger(),
	}, nil
}

// Ping checks that the REST endpoint is reachable and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "supabase.ping")
	defer span.End()

	_, err := c.get(ctx, restPath, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ping_failed")
	}
	return err
}

// Select returns rows of table ordered by orderBy. A limit of zero lets the
// server decide how many rows to return.
func (c *Client) Select(ctx context.Context, table, orderBy string, limit, offset int) ([]json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "supabase.select")
	span.SetAttributes(
		attribute.String("supabase.table", table),
		attribute.Int("supabase.limit", limit),
		attribute.Int("supabase.offset", offset),
	)
	defer span.End()

	query := url.Values{}
	query.Set("select", "*")
	if orderBy != "" {
		query.Set("order", orderBy)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	body, err := c.get(ctx, restPath+url.PathEscape(table), query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select_failed")
		return nil, err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode_failed")
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	span.SetAttributes(attribute.Int("supabase.rows", len(rows)))

	return rows, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build supabase request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint.Path, err)
	}

	c.logger.Debug().
		Str("path", endpoint.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("supabase request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return nil, apiErr
	}

	return body, nil
}
