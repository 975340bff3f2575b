package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
	"github.com/jerkytreats/cdnhealth/internal/probe"
	"github.com/jerkytreats/cdnhealth/internal/report"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

type stubLister struct {
	urls  []string
	err   error
	calls atomic.Int32
}

func (s *stubLister) ListURLs(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.urls, s.err
}

type fakeChecker struct {
	ok      bool
	latency time.Duration
	err     error
}

func (f *fakeChecker) Name() string                            { return "cdn_dns" }
func (f *fakeChecker) CheckOnce() (bool, time.Duration, error) { return f.ok, f.latency, f.err }
func (f *fakeChecker) WaitHealthy() bool                       { return f.ok }

func cdnServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func newRunner(t *testing.T, lister Lister, writer *report.Writer, m *metrics.Metrics, out *bytes.Buffer) *Runner {
	t.Helper()
	gen, err := report.NewGenerator(report.DefaultWeights())
	require.NoError(t, err)

	agg := healthcheck.NewAggregator(
		probe.NewHTTPProber(2*time.Second),
		healthcheck.WithConsistencyDelay(0),
		healthcheck.WithObserver(m),
	)

	r, err := New(Options{
		Lister:      lister,
		Aggregator:  agg,
		Generator:   gen,
		Writer:      writer,
		Out:         out,
		Text:        report.TextOptions{NoColor: true},
		Metrics:     m,
		Environment: report.Environment{APIBaseURL: "http://api.test", Timeout: "2s", Concurrency: agg.BatchSize()},
		Resolver:    &fakeChecker{ok: true, latency: 3 * time.Millisecond},
	})
	require.NoError(t, err)
	return r
}

func TestRun_SavesAndRecords(t *testing.T) {
	server := cdnServer(t)
	lister := &stubLister{urls: []string{server.URL + "/ok.png", server.URL + "/missing.png"}}

	dir := t.TempDir()
	writer := report.NewWriter(dir, persistence.NewFileStorageWithPath(filepath.Join(dir, persistence.LatestReportFile), 2))
	m := metrics.NewMetrics()
	var out bytes.Buffer

	r := newRunner(t, lister, writer, m, &out)
	rep, path, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Results.Availability.Total)
	assert.Equal(t, float64(50), rep.Results.Availability.Rate)
	assert.Equal(t, float64(50), rep.Results.BrokenLinks.Rate)
	assert.Contains(t, out.String(), "CDN Resource Health Report")
	assert.Contains(t, out.String(), "Report saved to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	env := saved["environment"].(map[string]any)
	assert.Equal(t, "http://api.test", env["apiBaseUrl"])
	assert.Equal(t, "resolved in 3ms", env["cdnResolution"])

	assert.Equal(t, rep.OverallScore, testutil.ToFloat64(m.OverallScore))
	assert.Equal(t, float64(50), testutil.ToFloat64(m.DimensionRate.WithLabelValues("availability")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(metrics.OutcomeSuccess)))
	// A 404 is still a response, so both availability probes count as successful requests.
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProbeRequests.WithLabelValues("availability", metrics.OutcomeSuccess)))

	last := r.Last()
	require.NotNil(t, last)
	assert.Equal(t, path, last.Path)
	info := r.LastCheck()
	assert.Equal(t, rep.Tier, info["tier"])
	assert.Equal(t, path, info["reportPath"])
	assert.NotContains(t, info, "lastError")
}

func TestRun_WithoutWriter(t *testing.T) {
	server := cdnServer(t)
	lister := &stubLister{urls: []string{server.URL + "/ok.png"}}
	var out bytes.Buffer

	r := newRunner(t, lister, nil, nil, &out)
	rep, path, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, report.TierExcellent, rep.Tier)
	assert.NotContains(t, out.String(), "Report saved")
}

func TestRun_ListFailure(t *testing.T) {
	lister := &stubLister{err: errors.New("connection refused")}
	m := metrics.NewMetrics()

	r := newRunner(t, lister, nil, m, &bytes.Buffer{})
	_, _, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list resources")

	assert.Nil(t, r.Last())
	assert.Equal(t, "failed to list resources: connection refused", r.LastCheck()["lastError"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(metrics.OutcomeFailure)))
}

func TestRun_NoURLs(t *testing.T) {
	r := newRunner(t, &stubLister{}, nil, nil, &bytes.Buffer{})
	_, _, err := r.Run(context.Background())
	assert.ErrorIs(t, err, healthcheck.ErrNoURLs)
}

func TestLastCheck_BeforeFirstRun(t *testing.T) {
	r := newRunner(t, &stubLister{}, nil, nil, &bytes.Buffer{})
	assert.Nil(t, r.LastCheck())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Lister: &stubLister{}})
	assert.Error(t, err)

	_, err = New(Options{Lister: &stubLister{}, Aggregator: healthcheck.NewAggregator(probe.NewHTTPProber(time.Second))})
	assert.Error(t, err)
}

func TestEnvironment_ResolverFailure(t *testing.T) {
	r := newRunner(t, &stubLister{}, nil, nil, &bytes.Buffer{})
	r.opts.Resolver = &fakeChecker{err: errors.New("no such host")}
	assert.Equal(t, "no such host", r.environment().CDNResolution)

	r.opts.Resolver = nil
	assert.Empty(t, r.environment().CDNResolution)
}

func TestSchedule(t *testing.T) {
	server := cdnServer(t)
	lister := &stubLister{urls: []string{server.URL + "/ok.png"}}
	r := newRunner(t, lister, nil, nil, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Schedule(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return lister.calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

func TestSchedule_NonPositiveInterval(t *testing.T) {
	lister := &stubLister{}
	r := newRunner(t, lister, nil, nil, &bytes.Buffer{})
	r.Schedule(context.Background(), 0)
	assert.Equal(t, int32(0), lister.calls.Load())
}
