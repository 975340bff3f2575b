package probe

import (
	"strconv"
	"strings"
)

const (
	ScopePublic  = "public"
	ScopePrivate = "private"
)

// CacheDirectives is the part of Cache-Control the cache dimension reports.
// MaxAge is nil when no valid max-age directive is present.
type CacheDirectives struct {
	MaxAge  *int64 `json:"maxAge"`
	Scope   string `json:"scope,omitempty"`
	NoCache bool   `json:"noCache,omitempty"`
	NoStore bool   `json:"noStore,omitempty"`
}

// ParseCacheControl extracts max-age and the public/private scope from a
// Cache-Control header value. Unknown directives are ignored.
func ParseCacheControl(value string) CacheDirectives {
	var d CacheDirectives
	for _, part := range strings.Split(value, ",") {
		name, arg, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "max-age":
			if secs, err := strconv.ParseInt(strings.Trim(strings.TrimSpace(arg), `"`), 10, 64); err == nil && secs >= 0 {
				d.MaxAge = &secs
			}
		case ScopePublic:
			d.Scope = ScopePublic
		case ScopePrivate:
			d.Scope = ScopePrivate
		case "no-cache":
			d.NoCache = true
		case "no-store":
			d.NoStore = true
		}
	}
	return d
}

// HasCacheHeaders reports whether any caching-related header is present.
func (h Headers) HasCacheHeaders() bool {
	return h.CacheControl != "" || h.ETag != "" || h.LastModified != "" || h.Expires != ""
}

// SameVersion reports whether two snapshots describe the same representation:
// identical ETag, Last-Modified and Content-Length.
func (h Headers) SameVersion(other Headers) bool {
	return h.ETag == other.ETag &&
		h.LastModified == other.LastModified &&
		h.ContentLength == other.ContentLength
}
