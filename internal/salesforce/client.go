// Package salesforce implements the Salesforce REST collaborators of the
// import pipeline: OAuth2 JWT bearer authentication, SOQL queries, and the
// Bulk API 2.0 ingest job lifecycle.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sales-import/internal/util"
)

// Doer abstracts the HTTP transport so tests can substitute a fake.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies a valid bearer credential, refreshing transparently
// on expiry.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from Salesforce. The body snippet is kept
// so failures surface the remote cause, not a flattened message.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce API error: status %d: %s", e.StatusCode, e.Body)
}

// Client is the shared REST client for one Salesforce org.
type Client struct {
	httpClient  Doer
	instanceURL string
	apiVersion  string
	tokens      TokenProvider
}

// NewClient creates a Client for the given org. instanceURL must be the org
// base URL without a trailing slash path.
func NewClient(httpClient Doer, instanceURL, apiVersion string, tokens TokenProvider) *Client {
	return &Client{
		httpClient:  httpClient,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		apiVersion:  apiVersion,
		tokens:      tokens,
	}
}

// request performs one authenticated call and returns the response body.
// contentType may be empty for bodyless requests.
func (c *Client) request(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.instanceURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: util.Snippet(respBody)}
	}
	return respBody, nil
}

// requestJSON performs an authenticated call with optional JSON request body
// and decodes the JSON response into out (when out is non-nil).
func (c *Client) requestJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body []byte
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s %s: %w", method, path, err)
		}
		body = encoded
		contentType = "application/json"
	}

	respBody, err := c.request(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}

// apiPath builds a versioned REST path, e.g. apiPath("jobs/ingest").
func (c *Client) apiPath(suffix string) string {
	return fmt.Sprintf("/services/data/%s/%s", c.apiVersion, suffix)
}

// roundSeconds formats a duration for log lines in whole-ish seconds.
func roundSeconds(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}
