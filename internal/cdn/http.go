package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jerkytreats/cdnhealth/internal/logging"
)

// HTTPRefresher posts {"urls": [...]} to a refresh endpoint with a bearer token.
type HTTPRefresher struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewHTTPRefresher creates a refresher. A nil client gets the default request timeout.
func NewHTTPRefresher(endpoint, token string, httpClient *http.Client) *HTTPRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPRefresher{
		endpoint:   endpoint,
		token:      token,
		httpClient: httpClient,
	}
}

type refreshRequest struct {
	URLs []string `json:"urls"`
}

// Refresh implements Invalidator.
func (r *HTTPRefresher) Refresh(ctx context.Context, urls []string) RefreshResult {
	if len(urls) == 0 {
		return skipped(ProviderHTTP)
	}

	body, err := json.Marshal(refreshRequest{URLs: urls})
	if err != nil {
		return failed(ProviderHTTP, urls, fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(ProviderHTTP, urls, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return failed(ProviderHTTP, urls, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(ProviderHTTP, urls, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failed(ProviderHTTP, urls, fmt.Errorf("refresh endpoint returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	result := RefreshResult{Success: true, Provider: ProviderHTTP}
	if len(respBody) > 0 {
		var data map[string]any
		if err := json.Unmarshal(respBody, &data); err != nil {
			logging.Debug("CDN refresh response is not a JSON object: %v", err)
		} else {
			result.Data = data
		}
	}

	logging.Info("CDN refresh requested for %d url(s)", len(urls))
	return result
}
