package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	segmentInvalidChars = regexp.MustCompile(`[^a-z0-9._-]+`)
	segmentDashes       = regexp.MustCompile(`-{2,}`)
)

// ValidateResourceURL checks that raw is an absolute http(s) URL with a host.
func ValidateResourceURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}

	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}

	return nil
}

// IsValidResourceURL is the boolean form of ValidateResourceURL.
func IsValidResourceURL(raw string) bool {
	return ValidateResourceURL(raw) == nil
}

// NormalizePathSegment lower-cases s and reduces it to characters that are
// safe inside an object storage key segment. Runs of anything else become a
// single hyphen; leading and trailing separators are trimmed.
func NormalizePathSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = segmentInvalidChars.ReplaceAllString(s, "-")
	s = segmentDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-.")
}

// JoinURL joins a base URL and a relative path with exactly one slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
