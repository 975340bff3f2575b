// Package probe issues single metadata-only requests against resource URLs.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	ProbeTimeoutKey          = "probe.timeout"
	ProbeRetriesKey          = "probe.retries"
	DefaultTimeout           = 10 * time.Second
	defaultUserAgent         = "resourcectl/1.0"
	serverErrorStatusMinimum = 500
)

// Headers are the response headers the health dimensions look at.
type Headers struct {
	ContentType   string `json:"content-type,omitempty"`
	ContentLength string `json:"content-length,omitempty"`
	CacheControl  string `json:"cache-control,omitempty"`
	ETag          string `json:"etag,omitempty"`
	LastModified  string `json:"last-modified,omitempty"`
	Expires       string `json:"expires,omitempty"`
}

// Result is the outcome of one probe. Success means the request completed
// with a status below 500; a 404 is a successful probe with Status 404.
type Result struct {
	URL     string        `json:"url"`
	Success bool          `json:"success"`
	Status  int           `json:"status"`
	Elapsed time.Duration `json:"-"`
	Error   string        `json:"error,omitempty"`
	Headers Headers       `json:"headers"`
}

// OK reports whether the probe got HTTP 200.
func (r Result) OK() bool {
	return r.Success && r.Status == http.StatusOK
}

// ElapsedMs is Elapsed in whole milliseconds.
func (r Result) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}

func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		ElapsedMs int64 `json:"elapsedMs"`
	}{alias: alias(r), ElapsedMs: r.ElapsedMs()})
}

// Prober probes a single URL. Implementations never return an error:
// failures are reported in the Result.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// Observer is notified after each probe a health dimension makes.
type Observer interface {
	ObserveProbe(dimension string, success bool, elapsed time.Duration)
}

// HTTPProber issues HEAD requests.
type HTTPProber struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option customizes an HTTPProber.
type Option func(*HTTPProber)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *HTTPProber) {
		p.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *HTTPProber) {
		p.userAgent = ua
	}
}

// NewHTTPProber creates a prober with a per-probe timeout. timeout <= 0 uses DefaultTimeout.
func NewHTTPProber(timeout time.Duration, opts ...Option) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &HTTPProber{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) Result {
	result := Result{URL: url}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}
	req.Header.Set("User-Agent", p.userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	result.Headers = extractHeaders(resp.Header)
	if result.Headers.ContentLength == "" && resp.ContentLength >= 0 {
		result.Headers.ContentLength = strconv.FormatInt(resp.ContentLength, 10)
	}

	if resp.StatusCode >= serverErrorStatusMinimum {
		result.Error = fmt.Sprintf("server error: %s", resp.Status)
		return result
	}

	result.Success = true
	return result
}

func extractHeaders(h http.Header) Headers {
	return Headers{
		ContentType:   h.Get("Content-Type"),
		ContentLength: h.Get("Content-Length"),
		CacheControl:  h.Get("Cache-Control"),
		ETag:          h.Get("ETag"),
		LastModified:  h.Get("Last-Modified"),
		Expires:       h.Get("Expires"),
	}
}
