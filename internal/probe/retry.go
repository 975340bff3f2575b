package probe

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerkytreats/cdnhealth/internal/logging"
)

const defaultRetryInterval = 500 * time.Millisecond

var errProbeFailed = errors.New("probe failed")

// RetryProber retries failed probes with exponential backoff. Only results
// with Success == false are retried; a 404 is final.
type RetryProber struct {
	next            Prober
	maxRetries      uint64
	initialInterval time.Duration
}

// NewRetryProber wraps next. maxRetries == 0 returns next unchanged.
func NewRetryProber(next Prober, maxRetries int, initialInterval time.Duration) Prober {
	if maxRetries <= 0 {
		return next
	}
	if initialInterval <= 0 {
		initialInterval = defaultRetryInterval
	}
	return &RetryProber{
		next:            next,
		maxRetries:      uint64(maxRetries),
		initialInterval: initialInterval,
	}
}

// Probe implements Prober. The last attempt's result is returned.
func (p *RetryProber) Probe(ctx context.Context, url string) Result {
	b := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(backoff.WithInitialInterval(p.initialInterval)),
			p.maxRetries,
		),
		ctx,
	)

	attempt := 0
	result, _ := backoff.RetryNotifyWithData(func() (Result, error) {
		attempt++
		r := p.next.Probe(ctx, url)
		if !r.Success {
			return r, errProbeFailed
		}
		return r, nil
	}, b, func(err error, wait time.Duration) {
		logging.Debug("Probe of %s failed on attempt %d, retrying in %s", url, attempt, wait)
	})
	return result
}
