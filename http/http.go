// Package http provides HTTP clients for the services the SDK talks to:
// the premint attestation store, the bridge quoting service and the
// metadata upload service.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthProvider generates authentication headers for outgoing requests
type AuthProvider interface {
	// GetAuthHeaders returns headers to set on every request
	GetAuthHeaders(ctx context.Context) (map[string]string, error)
}

// APIKeyAuth is a static API key sent in a header
type APIKeyAuth struct {
	Header string
	Key    string
}

// GetAuthHeaders implements AuthProvider
func (a APIKeyAuth) GetAuthHeaders(_ context.Context) (map[string]string, error) {
	header := a.Header
	if header == "" {
		header = "X-API-KEY"
	}
	return map[string]string{header: a.Key}, nil
}

// StatusError is a non-2xx response from a service
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed (%d): %s", e.Service, e.StatusCode, e.Body)
}

// readRetries is the number of attempts for idempotent reads on 429 rate limit errors
const readRetries = 3

// readRetryBaseDelay is the base delay for exponential backoff on retries
const readRetryBaseDelay = 1 * time.Second

const defaultTimeout = 30 * time.Second

// restClient is the JSON request plumbing shared by the service clients.
type restClient struct {
	service        string
	baseURL        string
	httpClient     *http.Client
	authProvider   AuthProvider
	retryBaseDelay time.Duration
}

func newRESTClient(service, baseURL string, httpClient *http.Client, auth AuthProvider, timeout time.Duration) restClient {
	if httpClient == nil {
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return restClient{
		service:        service,
		baseURL:        baseURL,
		httpClient:     httpClient,
		authProvider:   auth,
		retryBaseDelay: readRetryBaseDelay,
	}
}

// getJSON performs a GET and decodes a 200 response into out. Retries up to
// 3 times with exponential backoff on 429 rate limit errors.
func (c *restClient) getJSON(ctx context.Context, path string, out interface{}) error {
	var lastErr error

	for attempt := range readRetries {
		status, body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}

		if status == http.StatusOK {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", c.service, err)
			}
			return nil
		}

		lastErr = &StatusError{Service: c.service, StatusCode: status, Body: string(body)}

		// Retry on 429 with exponential backoff, except on the last attempt
		if status == http.StatusTooManyRequests && attempt < readRetries-1 {
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return lastErr
	}

	return lastErr
}

// postJSON sends in as JSON and decodes a 2xx response into out, when out
// is not nil. Writes are never retried.
func (c *restClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", c.service, err)
	}

	status, body, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return &StatusError{Service: c.service, StatusCode: status, Body: string(body)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.service, err)
	}
	return nil
}

func (c *restClient) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", c.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, responseBody, nil
}

func (c *restClient) authorize(ctx context.Context, req *http.Request) error {
	if c.authProvider == nil {
		return nil
	}
	headers, err := c.authProvider.GetAuthHeaders(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth headers: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return nil
}
