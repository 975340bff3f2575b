package healthcheck

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const CDNDNSResolversKey = "cdn.dns_resolvers"

// CDNResolveChecker verifies that the CDN host resolves through public
// resolvers. It implements the Checker interface.
type CDNResolveChecker struct {
	host      string
	resolvers []string
	timeout   time.Duration
	retries   int
	delay     time.Duration
}

// NewCDNResolveChecker constructs a checker for host, which may be a bare
// host name or a URL such as the configured CDN base URL.
func NewCDNResolveChecker(host string, resolvers []string, timeout time.Duration, retries int, delay time.Duration) *CDNResolveChecker {
	return &CDNResolveChecker{
		host:      hostOf(host),
		resolvers: resolvers,
		timeout:   timeout,
		retries:   retries,
		delay:     delay,
	}
}

func (c *CDNResolveChecker) Name() string { return "cdn_dns" }

// Host returns the host name being resolved.
func (c *CDNResolveChecker) Host() string { return c.host }

// CheckOnce queries each resolver in order for an A record of the host and
// succeeds on the first answer.
func (c *CDNResolveChecker) CheckOnce() (bool, time.Duration, error) {
	if c.host == "" {
		return false, 0, fmt.Errorf("no CDN host configured")
	}
	if len(c.resolvers) == 0 {
		return false, 0, fmt.Errorf("no DNS resolvers configured")
	}

	client := &dns.Client{Net: "udp", Timeout: c.timeout}
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(c.host), dns.TypeA)

	var errs []error
	for _, resolver := range c.resolvers {
		in, rtt, err := client.Exchange(msg, resolver)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", resolver, err))
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			errs = append(errs, fmt.Errorf("%s: %s", resolver, dns.RcodeToString[in.Rcode]))
			continue
		}
		if len(in.Answer) == 0 {
			errs = append(errs, fmt.Errorf("%s: no answer for %s", resolver, c.host))
			continue
		}
		return true, rtt, nil
	}
	return false, 0, errors.Join(errs...)
}

// WaitHealthy performs repeated health checks until success or retries exhausted.
// Returns true if a check succeeded.
func (c *CDNResolveChecker) WaitHealthy() bool {
	for i := 0; i < c.retries; i++ {
		ok, _, _ := c.CheckOnce()
		if ok {
			return true
		}
		time.Sleep(c.delay)
	}
	return false
}

func hostOf(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			return u.Hostname()
		}
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.TrimSuffix(s, "/")
}
