package healthcheck

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer starts a UDP DNS server on 127.0.0.1:0 that answers A
// queries for the names in records and NXDOMAIN for everything else.
func startDNSServer(t *testing.T, records map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			if ip, ok := records[q.Name]; ok && q.Qtype == dns.TypeA {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP(ip),
				})
			} else {
				m.Rcode = dns.RcodeNameError
			}
			w.WriteMsg(m)
		}),
	}
	go server.ActivateAndServe()
	<-started
	t.Cleanup(func() { server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestCDNResolveChecker_CheckOnce_Success(t *testing.T) {
	addr := startDNSServer(t, map[string]string{"cdn.example.com.": "203.0.113.10"})

	checker := NewCDNResolveChecker("https://cdn.example.com/assets", []string{addr}, time.Second, 1, 0)
	assert.Equal(t, "cdn.example.com", checker.Host())

	ok, _, err := checker.CheckOnce()
	assert.True(t, ok)
	assert.NoError(t, err)
	assert.True(t, checker.WaitHealthy())
}

func TestCDNResolveChecker_FallsBackToNextResolver(t *testing.T) {
	empty := startDNSServer(t, nil)
	good := startDNSServer(t, map[string]string{"cdn.example.com.": "203.0.113.10"})

	checker := NewCDNResolveChecker("cdn.example.com", []string{empty, good}, time.Second, 1, 0)
	ok, _, err := checker.CheckOnce()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestCDNResolveChecker_NXDomain(t *testing.T) {
	addr := startDNSServer(t, nil)

	checker := NewCDNResolveChecker("missing.example.com", []string{addr}, time.Second, 2, time.Millisecond)
	ok, _, err := checker.CheckOnce()
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NXDOMAIN")
	assert.False(t, checker.WaitHealthy())
}

func TestCDNResolveChecker_Unconfigured(t *testing.T) {
	ok, _, err := NewCDNResolveChecker("", []string{"127.0.0.1:53"}, time.Second, 1, 0).CheckOnce()
	assert.False(t, ok)
	assert.Error(t, err)

	ok, _, err = NewCDNResolveChecker("cdn.example.com", nil, time.Second, 1, 0).CheckOnce()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCDNResolveChecker_Timeout(t *testing.T) {
	// A bound socket that never answers.
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	checker := NewCDNResolveChecker("cdn.example.com", []string{pc.LocalAddr().String()}, 50*time.Millisecond, 1, 0)
	ok, _, err := checker.CheckOnce()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "cdn.example.com", hostOf("https://cdn.example.com:8443/x"))
	assert.Equal(t, "cdn.example.com", hostOf("cdn.example.com:443"))
	assert.Equal(t, "cdn.example.com", hostOf("cdn.example.com"))
	assert.Equal(t, "", hostOf(""))
}
