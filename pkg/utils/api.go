package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found")

// StatusError is returned for any other non-2xx response
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// API is a small JSON client shared by the content sources and the remote
// progress service. Requests wait on an optional rate limiter.
type API struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	headers http.Header
}

type APIOption func(*API)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.client = c }
}

// WithRateLimit limits requests to r per second with the given burst
func WithRateLimit(r rate.Limit, burst int) APIOption {
	return func(a *API) {
		if r > 0 {
			a.limiter = rate.NewLimiter(r, max(burst, 1))
		}
	}
}

// WithHeader sets a header on every request
func WithHeader(key, value string) APIOption {
	return func(a *API) {
		if value != "" {
			a.headers.Set(key, value)
		}
	}
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{client: http.DefaultClient, baseURL: baseURL, headers: make(http.Header)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) BaseURL() string { return a.baseURL }

func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return a.do(ctx, http.MethodGet, path, nil, v)
}

func (a *API) Post(ctx context.Context, path string, body, v any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return a.do(ctx, http.MethodPost, path, bytes.NewReader(payload), v)
}

func (a *API) do(ctx context.Context, method, path string, body io.Reader, v any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	target := a.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	for k, vals := range a.headers {
		req.Header[k] = vals
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, target, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
