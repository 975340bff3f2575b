package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/probe"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

const (
	ProbeConcurrencyKey      = "probe.concurrency"
	ProbeConsistencyDelayKey = "probe.consistency_delay"

	DefaultBatchSize        = 10
	DefaultConsistencyDelay = 2 * time.Second
)

// ErrNoURLs is returned when Run is called without any URL.
var ErrNoURLs = errors.New("no resource urls to check")

// InvalidURLError reports a URL rejected before any probe was issued.
type InvalidURLError struct {
	Index int
	URL   string
	Err   error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid resource url at index %d: %v", e.Index, e.Err)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// Aggregator runs the five health dimensions over a URL list.
type Aggregator struct {
	prober           probe.Prober
	batchSize        int
	consistencyDelay time.Duration
	observer         probe.Observer
}

// AggregatorOption customizes an Aggregator.
type AggregatorOption func(*Aggregator)

// WithBatchSize sets the per-dimension concurrency cap. Values < 1 are ignored.
func WithBatchSize(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithConsistencyDelay sets the pause between the two consistency probes.
func WithConsistencyDelay(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d >= 0 {
			a.consistencyDelay = d
		}
	}
}

// WithObserver registers a per-probe observer, typically the metrics recorder.
func WithObserver(o probe.Observer) AggregatorOption {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// NewAggregator creates an aggregator using p for every probe.
func NewAggregator(p probe.Prober, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		prober:           p,
		batchSize:        DefaultBatchSize,
		consistencyDelay: DefaultConsistencyDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BatchSize returns the configured concurrency cap.
func (a *Aggregator) BatchSize() int {
	return a.batchSize
}

// Run validates urls, then launches all five dimension scans concurrently and
// waits for them. Probe failures are recorded as data; only an invalid input
// or a canceled context produces an error.
func (a *Aggregator) Run(ctx context.Context, urls []string) (*Results, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	for i, u := range urls {
		if err := validation.ValidateResourceURL(u); err != nil {
			return nil, &InvalidURLError{Index: i, URL: u, Err: err}
		}
	}

	logging.Info("Checking %d resource(s) across %d dimensions (batch size %d)", len(urls), len(Dimensions), a.batchSize)
	start := time.Now()

	var (
		availability = make([]ProbeResult, len(urls))
		consistency  = make([]ProbeResult, len(urls))
		cache        = make([]ProbeResult, len(urls))
		broken       = make([]ProbeResult, len(urls))
		performance  = make([]ProbeResult, len(urls))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunBatches(gctx, urls, a.batchSize, func(ctx context.Context, i int, u string) {
			availability[i] = a.checkAvailability(ctx, u)
		})
	})
	g.Go(func() error {
		return a.sequential(gctx, urls, func(ctx context.Context, i int, u string) error {
			r, err := a.checkConsistency(ctx, u)
			consistency[i] = r
			return err
		})
	})
	g.Go(func() error {
		return a.sequential(gctx, urls, func(ctx context.Context, i int, u string) error {
			cache[i] = a.checkCache(ctx, u)
			return nil
		})
	})
	g.Go(func() error {
		return RunBatches(gctx, urls, a.batchSize, func(ctx context.Context, i int, u string) {
			broken[i] = a.checkBrokenLink(ctx, u)
		})
	})
	g.Go(func() error {
		return RunBatches(gctx, urls, a.batchSize, func(ctx context.Context, i int, u string) {
			performance[i] = a.checkPerformance(ctx, u)
		})
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("health check interrupted: %w", err)
	}

	results := &Results{
		Availability: Summarize(Availability, availability),
		Consistency:  Summarize(Consistency, consistency),
		Cache:        Summarize(Cache, cache),
		BrokenLinks:  Summarize(BrokenLinks, broken),
		Performance:  Summarize(Performance, performance),
	}

	logging.Info("Health check finished in %s: availability %s, consistency %s, cache %s, broken %s",
		time.Since(start).Round(time.Millisecond),
		FormatRate(results.Availability.Rate), FormatRate(results.Consistency.Rate),
		FormatRate(results.Cache.Rate), FormatRate(results.BrokenLinks.Rate))
	return results, nil
}

// RunBatches calls fn for every item in consecutive batches of size. Items
// within a batch run concurrently; a batch starts only after the previous one
// has fully completed. fn receives the item's index so results can be stored
// positionally. It returns ctx.Err() if the context ends between batches.
func RunBatches[T any](ctx context.Context, items []T, size int, fn func(ctx context.Context, i int, item T)) error {
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(items))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				fn(ctx, i, items[i])
				return nil
			})
		}
		_ = g.Wait()
	}
	return nil
}

func (a *Aggregator) sequential(ctx context.Context, urls []string, fn func(ctx context.Context, i int, u string) error) error {
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i, u); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) probe(ctx context.Context, d Dimension, u string) probe.Result {
	r := a.prober.Probe(ctx, u)
	if a.observer != nil {
		a.observer.ObserveProbe(string(d), r.Success, r.Elapsed)
	}
	if !r.Success {
		logging.Debug("%s probe of %s failed: status=%d error=%s", d, u, r.Status, r.Error)
	}
	return r
}

func (a *Aggregator) checkAvailability(ctx context.Context, u string) ProbeResult {
	p := a.probe(ctx, Availability, u)
	r := fromProbe(p)
	r.Headers = &p.Headers
	r.matched = p.OK()
	return r
}

func (a *Aggregator) checkBrokenLink(ctx context.Context, u string) ProbeResult {
	p := a.probe(ctx, BrokenLinks, u)
	r := fromProbe(p)
	working := p.OK()
	r.Working = &working
	r.matched = !working
	return r
}

func (a *Aggregator) checkPerformance(ctx context.Context, u string) ProbeResult {
	p := a.probe(ctx, Performance, u)
	r := fromProbe(p)
	r.matched = p.Success
	return r
}

func (a *Aggregator) checkCache(ctx context.Context, u string) ProbeResult {
	p := a.probe(ctx, Cache, u)
	r := fromProbe(p)
	r.Headers = &p.Headers
	cached := p.Success && p.Headers.HasCacheHeaders()
	r.Cached = &cached
	if p.Headers.CacheControl != "" {
		d := probe.ParseCacheControl(p.Headers.CacheControl)
		r.CacheControl = &d
	}
	r.matched = cached
	return r
}

// checkConsistency probes u twice, consistencyDelay apart. Both probes must
// succeed and report the same ETag, Last-Modified and Content-Length.
func (a *Aggregator) checkConsistency(ctx context.Context, u string) (ProbeResult, error) {
	first := a.probe(ctx, Consistency, u)

	if err := sleep(ctx, a.consistencyDelay); err != nil {
		return fromProbe(first), err
	}

	second := a.probe(ctx, Consistency, u)

	r := fromProbe(second)
	r.Success = first.Success && second.Success
	if r.Error == "" {
		r.Error = first.Error
	}
	r.Elapsed = first.Elapsed + second.Elapsed
	r.ElapsedMs = r.Elapsed.Milliseconds()
	r.First = &first.Headers
	r.Second = &second.Headers

	consistent := r.Success && first.Headers.SameVersion(second.Headers)
	r.Consistent = &consistent
	r.matched = consistent
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
