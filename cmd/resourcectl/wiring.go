package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/cdn"
	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
	"github.com/jerkytreats/cdnhealth/internal/probe"
	"github.com/jerkytreats/cdnhealth/internal/registry"
	"github.com/jerkytreats/cdnhealth/internal/report"
	"github.com/jerkytreats/cdnhealth/internal/resource"
	"github.com/jerkytreats/cdnhealth/internal/runner"
	"github.com/jerkytreats/cdnhealth/internal/storage"
	"github.com/jerkytreats/cdnhealth/internal/upload"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

const (
	retryInitialInterval = 500 * time.Millisecond

	resolverTimeout = 5 * time.Second
	resolverRetries = 3
	resolverDelay   = time.Second
)

type runnerSettings struct {
	lister  runner.Lister
	out     io.Writer
	noColor bool
	save    bool
	metrics *metrics.Metrics
}

// buildRunner assembles the verify pipeline from configuration. The returned
// FileStorage holds the latest saved report.
func buildRunner(s runnerSettings) (*runner.Runner, *persistence.FileStorage, error) {
	timeout := config.GetDuration(probe.ProbeTimeoutKey)
	if timeout <= 0 {
		timeout = probe.DefaultTimeout
	}

	prober := probe.NewRetryProber(probe.NewHTTPProber(timeout), config.GetInt(probe.ProbeRetriesKey), retryInitialInterval)

	aggOpts := []healthcheck.AggregatorOption{
		healthcheck.WithBatchSize(config.GetInt(healthcheck.ProbeConcurrencyKey)),
		healthcheck.WithConsistencyDelay(config.GetDuration(healthcheck.ProbeConsistencyDelayKey)),
	}
	if s.metrics != nil {
		aggOpts = append(aggOpts, healthcheck.WithObserver(s.metrics))
	}
	agg := healthcheck.NewAggregator(prober, aggOpts...)

	weights, err := report.WeightsFromConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid scoring weights: %w", err)
	}
	gen, err := report.NewGenerator(weights)
	if err != nil {
		return nil, nil, err
	}

	latest := persistence.NewFileStorage()
	var writer *report.Writer
	if s.save {
		writer = report.NewWriter(config.GetString(persistence.ReportDirKey), latest)
	}

	opts := runner.Options{
		Lister:     s.lister,
		Aggregator: agg,
		Generator:  gen,
		Writer:     writer,
		Out:        s.out,
		Text:       report.TextOptions{NoColor: s.noColor},
		Metrics:    s.metrics,
		Environment: report.Environment{
			APIBaseURL:  config.GetString(config.APIBaseURLKey),
			CDNBaseURL:  config.GetString(config.CDNBaseURLKey),
			Timeout:     timeout.String(),
			Concurrency: agg.BatchSize(),
		},
	}
	if checker := newCDNResolveChecker(); checker != nil {
		opts.Resolver = checker
	}

	r, err := runner.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return r, latest, nil
}

// newCDNResolveChecker returns nil when no CDN base URL is configured or its
// host cannot be resolved through DNS.
func newCDNResolveChecker() *healthcheck.CDNResolveChecker {
	base := config.GetString(config.CDNBaseURLKey)
	if base == "" {
		return nil
	}
	checker := healthcheck.NewCDNResolveChecker(base, config.GetStringSlice(healthcheck.CDNDNSResolversKey), resolverTimeout, resolverRetries, resolverDelay)
	if err := validation.ValidateCDNHost(checker.Host()); err != nil {
		logging.Warn("Skipping CDN DNS check: %v", err)
		return nil
	}
	return checker
}

// openManager wires storage, the registry and the CDN invalidator into a
// resource manager. The caller closes the registry.
func openManager(m *metrics.Metrics) (*resource.Manager, *registry.Registry, error) {
	store, err := storage.NewFromConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure object storage: %w", err)
	}
	if store == nil {
		logging.Warn("No object storage backend configured, uploads will fail")
	}

	invalidator, err := cdn.NewFromConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure CDN refresh: %w", err)
	}

	reg, err := registry.Open(config.GetString(registry.RegistryPathKey))
	if err != nil {
		return nil, nil, err
	}

	return resource.NewManager(upload.NewUploader(store), reg, invalidator, m), reg, nil
}
