// Package metrics exposes Prometheus metrics for probes, checks and the store pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Probe metrics
	ProbeRequests *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// Check metrics
	DimensionRate *prometheus.GaugeVec
	OverallScore  prometheus.Gauge
	ChecksTotal   *prometheus.CounterVec
	CheckDuration prometheus.Histogram

	// Store pipeline metrics
	UploadsTotal    *prometheus.CounterVec
	CDNRefreshTotal *prometheus.CounterVec
}

// NewMetrics creates and registers metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProbeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdnhealth_probe_requests_total",
				Help: "Total number of resource probes issued",
			},
			[]string{"dimension", "outcome"},
		),

		ProbeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cdnhealth_probe_duration_seconds",
				Help:    "Wall-clock duration of resource probes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dimension"},
		),

		DimensionRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cdnhealth_dimension_rate",
				Help: "Rate in percent of the last completed check, per dimension",
			},
			[]string{"dimension"},
		),

		OverallScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cdnhealth_overall_score",
				Help: "Overall score of the last completed check",
			},
		),

		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdnhealth_checks_total",
				Help: "Total number of health check runs",
			},
			[]string{"outcome"},
		),

		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cdnhealth_check_duration_seconds",
				Help:    "Duration of complete health check runs",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdnhealth_uploads_total",
				Help: "Total number of resource uploads",
			},
			[]string{"outcome"},
		),

		CDNRefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdnhealth_cdn_refresh_total",
				Help: "Total number of CDN refresh calls",
			},
			[]string{"provider", "outcome"},
		),
	}
}

// Handler serves the private registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProbe records one probe.
func (m *Metrics) ObserveProbe(dimension string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProbeRequests.WithLabelValues(dimension, outcome(success)).Inc()
	m.ProbeDuration.WithLabelValues(dimension).Observe(elapsed.Seconds())
}

// RecordCheck records a completed (or failed) check run.
func (m *Metrics) RecordCheck(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(outcome(success)).Inc()
	m.CheckDuration.Observe(duration.Seconds())
}

// SetDimensionRate updates the gauge for a dimension.
func (m *Metrics) SetDimensionRate(dimension string, rate float64) {
	if m == nil {
		return
	}
	m.DimensionRate.WithLabelValues(dimension).Set(rate)
}

// SetOverallScore updates the overall score gauge.
func (m *Metrics) SetOverallScore(score float64) {
	if m == nil {
		return
	}
	m.OverallScore.Set(score)
}

// RecordUpload records an upload attempt.
func (m *Metrics) RecordUpload(success bool) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordCDNRefresh records a refresh call.
func (m *Metrics) RecordCDNRefresh(provider string, success, skipped bool) {
	if m == nil {
		return
	}
	o := outcome(success)
	if skipped {
		o = OutcomeSkipped
	}
	m.CDNRefreshTotal.WithLabelValues(provider, o).Inc()
}

func outcome(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
