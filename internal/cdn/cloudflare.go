package cdn

import (
	"context"
	"fmt"
	"net/http"

	cfapi "github.com/cloudflare/cloudflare-go"
	"github.com/jerkytreats/cdnhealth/internal/logging"
)

// Cloudflare accepts at most this many files per purge request.
const cloudflarePurgeBatch = 30

// CloudflarePurger purges individual files from a Cloudflare zone cache.
type CloudflarePurger struct {
	api    *cfapi.API
	zoneID string
}

type cloudflareOptions struct {
	httpClient *http.Client
	baseURL    string
}

// CloudflareOption customizes the Cloudflare API client.
type CloudflareOption func(*cloudflareOptions)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) CloudflareOption {
	return func(o *cloudflareOptions) {
		o.httpClient = c
	}
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) CloudflareOption {
	return func(o *cloudflareOptions) {
		o.baseURL = u
	}
}

// NewCloudflarePurger creates a purger for zoneID authenticated with an API token.
func NewCloudflarePurger(apiToken, zoneID string, opts ...CloudflareOption) (*CloudflarePurger, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("cloudflare zone id is required")
	}

	o := &cloudflareOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var apiOpts []cfapi.Option
	if o.httpClient != nil {
		apiOpts = append(apiOpts, cfapi.HTTPClient(o.httpClient))
	}
	if o.baseURL != "" {
		apiOpts = append(apiOpts, cfapi.BaseURL(o.baseURL))
	}

	api, err := cfapi.NewWithAPIToken(apiToken, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare API client: %w", err)
	}

	return &CloudflarePurger{api: api, zoneID: zoneID}, nil
}

// Refresh implements Invalidator.
func (p *CloudflarePurger) Refresh(ctx context.Context, urls []string) RefreshResult {
	if len(urls) == 0 {
		return skipped(ProviderCloudflare)
	}

	var purgeIDs []any
	for start := 0; start < len(urls); start += cloudflarePurgeBatch {
		end := min(start+cloudflarePurgeBatch, len(urls))
		resp, err := p.api.PurgeCache(ctx, p.zoneID, cfapi.PurgeCacheRequest{Files: urls[start:end]})
		if err != nil {
			return failed(ProviderCloudflare, urls, fmt.Errorf("purge cache: %w", err))
		}
		if !resp.Success {
			return failed(ProviderCloudflare, urls, fmt.Errorf("purge cache rejected: %v", resp.Errors))
		}
		purgeIDs = append(purgeIDs, resp.Result.ID)
	}

	logging.Info("Cloudflare purge requested for %d url(s) in zone %s", len(urls), p.zoneID)
	return RefreshResult{
		Success:  true,
		Provider: ProviderCloudflare,
		Data:     map[string]any{"purgeIds": purgeIDs},
	}
}
