// Package runner drives the verify pipeline: list, probe, score, print, save.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/report"
)

const (
	ScheduleEnabledKey  = "schedule.enabled"
	ScheduleIntervalKey = "schedule.interval"
)

// Lister supplies the URLs to verify.
type Lister interface {
	ListURLs(ctx context.Context) ([]string, error)
}

// Options wires a Runner. Lister, Aggregator and Generator are required.
type Options struct {
	Lister     Lister
	Aggregator *healthcheck.Aggregator
	Generator  *report.Generator
	// Writer persists reports; nil disables saving.
	Writer      *report.Writer
	Out         io.Writer
	Text        report.TextOptions
	Metrics     *metrics.Metrics
	Environment report.Environment
	// Resolver, when set, is checked once per run and recorded in the environment.
	Resolver healthcheck.Checker
}

// Outcome is one completed run.
type Outcome struct {
	Report   *report.HealthReport
	Path     string
	Started  time.Time
	Duration time.Duration
}

// Runner executes health checks. Runs are serialized.
type Runner struct {
	opts Options
	now  func() time.Time

	runMu sync.Mutex

	mu      sync.RWMutex
	last    *Outcome
	lastErr error
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Lister == nil {
		return nil, errors.New("runner requires a resource lister")
	}
	if opts.Aggregator == nil {
		return nil, errors.New("runner requires an aggregator")
	}
	if opts.Generator == nil {
		return nil, errors.New("runner requires a report generator")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Runner{opts: opts, now: time.Now}, nil
}

// Run performs one full check. It returns the report and the saved file path,
// which is empty when saving is disabled. Per-URL failures are part of the
// report; only listing, validation and output failures are returned.
func (r *Runner) Run(ctx context.Context) (*report.HealthReport, string, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	started := r.now()
	rep, path, err := r.run(ctx)
	duration := r.now().Sub(started)
	r.opts.Metrics.RecordCheck(err == nil, duration)

	r.mu.Lock()
	if err == nil {
		r.last = &Outcome{Report: rep, Path: path, Started: started, Duration: duration}
	}
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		return nil, "", err
	}
	logging.Info("Health check finished in %v: score %.2f (%s)", duration, rep.OverallScore, rep.Tier)
	return rep, path, nil
}

func (r *Runner) run(ctx context.Context) (*report.HealthReport, string, error) {
	urls, err := r.opts.Lister.ListURLs(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list resources: %w", err)
	}
	logging.Info("Checking %d resource(s)", len(urls))

	results, err := r.opts.Aggregator.Run(ctx, urls)
	if err != nil {
		return nil, "", fmt.Errorf("health check failed: %w", err)
	}

	rep := r.opts.Generator.Generate(results)
	r.recordMetrics(rep)

	if err := report.RenderText(r.opts.Out, rep, r.opts.Text); err != nil {
		return nil, "", fmt.Errorf("failed to render report: %w", err)
	}

	if r.opts.Writer == nil {
		return rep, "", nil
	}

	path, _, err := r.opts.Writer.Save(rep, r.environment())
	if err != nil {
		return nil, "", fmt.Errorf("failed to save report: %w", err)
	}
	fmt.Fprintf(r.opts.Out, "Report saved to %s\n", path)
	return rep, path, nil
}

func (r *Runner) environment() report.Environment {
	env := r.opts.Environment
	if r.opts.Resolver == nil {
		return env
	}
	if ok, latency, err := r.opts.Resolver.CheckOnce(); ok {
		env.CDNResolution = fmt.Sprintf("resolved in %v", latency)
	} else if err != nil {
		env.CDNResolution = err.Error()
	} else {
		env.CDNResolution = "unresolved"
	}
	return env
}

func (r *Runner) recordMetrics(rep *report.HealthReport) {
	m := r.opts.Metrics
	if m == nil {
		return
	}
	for _, d := range healthcheck.Dimensions {
		if d == healthcheck.Performance {
			continue
		}
		m.SetDimensionRate(string(d), rep.Results.Summary(d).Rate)
	}
	m.SetOverallScore(rep.OverallScore)
}

// Last returns the most recent successful run, or nil.
func (r *Runner) Last() *Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// LastCheck summarizes the most recent run for the health endpoint.
func (r *Runner) LastCheck() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == nil && r.lastErr == nil {
		return nil
	}

	info := map[string]interface{}{}
	if r.last != nil {
		info["startedAt"] = r.last.Started.UTC()
		info["duration"] = r.last.Duration.String()
		info["overallScore"] = r.last.Report.OverallScore
		info["tier"] = r.last.Report.Tier
		if r.last.Path != "" {
			info["reportPath"] = r.last.Path
		}
	}
	if r.lastErr != nil {
		info["lastError"] = r.lastErr.Error()
	}
	return info
}

// Schedule runs a check every interval until ctx is done. Failures are
// logged and do not stop the loop.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logging.Warn("Scheduled checks disabled: non-positive interval %v", interval)
		return
	}
	logging.Info("Starting scheduled health checks every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Scheduled health checks stopped")
			return
		case <-ticker.C:
			if _, _, err := r.Run(ctx); err != nil {
				logging.Error("Scheduled health check failed: %v", err)
			}
		}
	}
}
