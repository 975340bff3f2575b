// Package resourcelist fetches the URLs to verify from the resource API.
package resourcelist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

const (
	resourcesEndpoint = "/api/resources"

	defaultTimeout = 30 * time.Second
)

// Item is the subset of a resource listing entry the client reads.
type Item struct {
	ID          int64  `json:"id"`
	PublicURL   string `json:"publicUrl"`
	StoragePath string `json:"storagePath"`
}

type envelope struct {
	Data []Item `json:"data"`
}

// Client lists resources from the API.
type Client struct {
	baseURL    string
	cdnBaseURL string
	token      string
	client     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithToken sends an Authorization bearer token.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// NewClient creates a client for the API at baseURL. When cdnBaseURL is set,
// resources are probed through it using their storage paths.
func NewClient(baseURL, cdnBaseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		cdnBaseURL: cdnBaseURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig reads api_base_url, cdn_base_url and api.token.
func NewClientFromConfig() (*Client, error) {
	baseURL := config.GetString(config.APIBaseURLKey)
	if err := validation.ValidateResourceURL(baseURL); err != nil {
		return nil, fmt.Errorf("%s: %w", config.APIBaseURLKey, err)
	}
	return NewClient(baseURL, config.GetString(config.CDNBaseURLKey), WithToken(config.GetString(config.APITokenKey))), nil
}

// ListItems fetches the raw listing.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	url := validation.JoinURL(c.baseURL, resourcesEndpoint)
	logging.Debug("Fetching resources from %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resource listing failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeItems(body)
}

// ListURLs returns one URL per listed resource, in listing order.
func (c *Client) ListURLs(ctx context.Context) ([]string, error) {
	items, err := c.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(items))
	for _, item := range items {
		u := c.urlFor(item)
		if u == "" {
			logging.Warn("Resource %d has neither a public URL nor a storage path, skipping", item.ID)
			continue
		}
		urls = append(urls, u)
	}

	logging.Info("Listed %d resource URL(s)", len(urls))
	return urls, nil
}

func (c *Client) urlFor(item Item) string {
	if c.cdnBaseURL != "" && item.StoragePath != "" {
		return validation.JoinURL(c.cdnBaseURL, item.StoragePath)
	}
	return item.PublicURL
}

// decodeItems accepts a bare array or a {"data": [...]} envelope.
func decodeItems(body []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty resource listing")
	}

	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return items, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}
