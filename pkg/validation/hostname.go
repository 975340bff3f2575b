package validation

import (
	"fmt"
	"net"
	"strings"
)

const (
	maxHostnameLength = 253
	maxLabelLength    = 63
)

// ValidateCDNHost checks that host is a fully qualified domain name that can
// be looked up in DNS. IP literals and single-label names are rejected.
func ValidateCDNHost(host string) error {
	if host == "" {
		return fmt.Errorf("cdn host cannot be empty")
	}

	if net.ParseIP(host) != nil {
		return fmt.Errorf("cdn host '%s' is an IP address, not a domain name", host)
	}

	if len(host) > maxHostnameLength {
		return fmt.Errorf("cdn host '%s' exceeds %d characters", host, maxHostnameLength)
	}

	if !strings.Contains(host, ".") {
		return fmt.Errorf("cdn host '%s' is not fully qualified - must contain at least one dot", host)
	}

	if !IsValidCDNHost(host) {
		return fmt.Errorf("cdn host '%s' contains invalid characters or empty labels", host)
	}

	return nil
}

// IsValidCDNHost reports whether every dot-separated label of host is 1-63
// alphanumerics or hyphens, neither starting nor ending with a hyphen.
func IsValidCDNHost(host string) bool {
	if host == "" || len(host) > maxHostnameLength || net.ParseIP(host) != nil {
		return false
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if len(label) == 0 || len(label) > maxLabelLength {
			return false
		}
		if !isAlphanumeric(label[0]) || !isAlphanumeric(label[len(label)-1]) {
			return false
		}
		for _, r := range label {
			if !isAlphanumericOrHyphen(r) {
				return false
			}
		}
	}
	return true
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isAlphanumericOrHyphen(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-'
}
