// Package upstream provides the HTTP client for the DNS provider API the
// gate fronts. All forwarded requests authenticate with the master key;
// per-client scoping happens before a request ever reaches this client.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	// DefaultBaseURL is the default base URL for the upstream DNS API.
	DefaultBaseURL = "https://dns.api.invalid"
)

// Record is a DNS record as the upstream API represents it.
type Record struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
	TTL   int    `json:"ttl,omitempty"`
}

// Client is an HTTP client for the upstream DNS API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing with a mock server).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates an upstream DNS API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListRecords retrieves the records for a hostname, optionally filtered by
// record type.
func (c *Client) ListRecords(ctx context.Context, hostname, recordType string) ([]Record, error) {
	endpoint := c.recordsURL(hostname)
	if recordType != "" {
		endpoint += "?" + url.Values{"type": {recordType}}.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result []Record
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// CreateRecord creates a record for a hostname.
func (c *Client) CreateRecord(ctx context.Context, hostname string, rec Record) (*Record, error) {
	body, err := c.do(ctx, http.MethodPost, c.recordsURL(hostname), rec, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var result Record
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// UpdateRecord replaces the record of the given type for a hostname.
func (c *Client) UpdateRecord(ctx context.Context, hostname string, rec Record) (*Record, error) {
	body, err := c.do(ctx, http.MethodPut, c.recordsURL(hostname), rec, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result Record
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// DeleteRecord removes the record of the given type for a hostname.
func (c *Client) DeleteRecord(ctx context.Context, hostname, recordType string) error {
	endpoint := c.recordsURL(hostname) + "?" + url.Values{"type": {recordType}}.Encode()
	_, err := c.do(ctx, http.MethodDelete, endpoint, nil, http.StatusNoContent)
	return err
}

func (c *Client) recordsURL(hostname string) string {
	return c.baseURL + "/v1/records/" + url.PathEscape(hostname)
}

// do executes one authenticated request and returns the raw body on the
// expected status, or a mapped error otherwise.
func (c *Client) do(ctx context.Context, method, endpoint string, payload any, wantStatus int) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("AccessKey", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != wantStatus {
		return nil, parseError(resp.StatusCode, body)
	}
	return body, nil
}
