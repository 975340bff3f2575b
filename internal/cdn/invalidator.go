// Package cdn refreshes cached copies of public asset URLs on the CDN edge.
// Refresh is best-effort: failures are reported in the result, never raised.
package cdn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
)

const (
	CDNProviderKey           = "cdn.provider"
	CDNRefreshURLKey         = "cdn.refresh_url"
	CDNTokenKey              = "cdn.token"
	CDNCloudflareAPITokenKey = "cdn.cloudflare.api_token"
	CDNCloudflareZoneIDKey   = "cdn.cloudflare.zone_id"

	ProviderNone       = "none"
	ProviderHTTP       = "http"
	ProviderCloudflare = "cloudflare"

	defaultRequestTimeout = 10 * time.Second
)

// RefreshResult reports the outcome of one refresh call.
type RefreshResult struct {
	Success  bool           `json:"success"`
	Skipped  bool           `json:"skipped,omitempty"`
	Provider string         `json:"provider"`
	Data     map[string]any `json:"data,omitempty"`
	Err      error          `json:"-"`
}

// Error returns the failure message, or "" on success.
func (r RefreshResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON adds the failure message under "error".
func (r RefreshResult) MarshalJSON() ([]byte, error) {
	type alias RefreshResult
	return json.Marshal(struct {
		alias
		Message string `json:"error,omitempty"`
	}{alias: alias(r), Message: r.Error()})
}

// RefreshFailedError is carried in RefreshResult.Err when the provider call failed.
type RefreshFailedError struct {
	Provider string
	URLs     []string
	Err      error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("cdn refresh via %s failed for %d url(s): %v", e.Provider, len(e.URLs), e.Err)
}

func (e *RefreshFailedError) Unwrap() error {
	return e.Err
}

// Invalidator refreshes URLs on the CDN.
type Invalidator interface {
	Refresh(ctx context.Context, urls []string) RefreshResult
}

// NoopInvalidator is used when no CDN is configured. Every call is a skipped success.
type NoopInvalidator struct{}

func (NoopInvalidator) Refresh(ctx context.Context, urls []string) RefreshResult {
	logging.Debug("CDN refresh skipped for %d url(s): no CDN configured", len(urls))
	return skipped(ProviderNone)
}

func skipped(provider string) RefreshResult {
	return RefreshResult{Success: true, Skipped: true, Provider: provider}
}

func failed(provider string, urls []string, err error) RefreshResult {
	logging.Warn("CDN refresh via %s failed: %v", provider, err)
	return RefreshResult{
		Provider: provider,
		Err:      &RefreshFailedError{Provider: provider, URLs: urls, Err: err},
	}
}

// NewFromConfig builds the configured invalidator. Missing credentials fall
// back to NoopInvalidator; an unknown provider is an error.
func NewFromConfig() (Invalidator, error) {
	provider := strings.ToLower(strings.TrimSpace(config.GetString(CDNProviderKey)))
	httpClient := &http.Client{Timeout: defaultRequestTimeout}

	switch provider {
	case "", ProviderHTTP:
		endpoint := config.GetString(CDNRefreshURLKey)
		token := config.GetString(CDNTokenKey)
		if endpoint == "" || token == "" {
			if provider == ProviderHTTP {
				logging.Warn("CDN provider %s selected but %s or %s is empty; refresh disabled", ProviderHTTP, CDNRefreshURLKey, CDNTokenKey)
			}
			return NoopInvalidator{}, nil
		}
		return NewHTTPRefresher(endpoint, token, httpClient), nil
	case ProviderCloudflare:
		token := config.GetString(CDNCloudflareAPITokenKey)
		zoneID := config.GetString(CDNCloudflareZoneIDKey)
		if token == "" || zoneID == "" {
			logging.Warn("CDN provider %s selected but %s or %s is empty; refresh disabled", ProviderCloudflare, CDNCloudflareAPITokenKey, CDNCloudflareZoneIDKey)
			return NoopInvalidator{}, nil
		}
		purger, err := NewCloudflarePurger(token, zoneID, WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		return purger, nil
	case ProviderNone:
		return NoopInvalidator{}, nil
	default:
		return nil, fmt.Errorf("unsupported %s value: %s", CDNProviderKey, provider)
	}
}
