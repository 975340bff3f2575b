package healthcheck

import (
	"context"
	"fmt"
	"time"
)

// Checker is the common interface implemented by all component health checkers.
type Checker interface {
	// Name returns the component name.
	Name() string
	// CheckOnce performs a single health-probe. ok==true means healthy; latency is the
	// time it took; err is populated on failure.
	CheckOnce() (ok bool, latency time.Duration, err error)
	// WaitHealthy blocks until a probe succeeds or retries/timeouts are exhausted.
	WaitHealthy() bool
}

// Result holds the outcome of a health probe.
type Result struct {
	Healthy bool
	Latency time.Duration
	Error   error
}

// Aggregate runs each checker once and returns per-component results plus an overall flag.
func Aggregate(checkers ...Checker) (map[string]Result, bool) {
	results := make(map[string]Result, len(checkers))
	allHealthy := true
	for _, chk := range checkers {
		ok, dur, err := chk.CheckOnce()
		if !ok {
			allHealthy = false
		}
		results[chk.Name()] = Result{Healthy: ok, Latency: dur, Error: err}
	}
	return results, allHealthy
}

// Pinger is implemented by the resource registry.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegistryChecker reports whether the resource registry database answers.
type RegistryChecker struct {
	db      Pinger
	timeout time.Duration
	retries int
	delay   time.Duration
}

// NewRegistryChecker constructs a RegistryChecker.
func NewRegistryChecker(db Pinger, timeout time.Duration, retries int, delay time.Duration) *RegistryChecker {
	return &RegistryChecker{db: db, timeout: timeout, retries: retries, delay: delay}
}

func (rc *RegistryChecker) Name() string { return "registry" }

// CheckOnce pings the database once.
func (rc *RegistryChecker) CheckOnce() (bool, time.Duration, error) {
	if rc.db == nil {
		return false, 0, fmt.Errorf("registry not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), rc.timeout)
	defer cancel()

	start := time.Now()
	if err := rc.db.Ping(ctx); err != nil {
		return false, 0, err
	}
	return true, time.Since(start), nil
}

// WaitHealthy performs repeated health checks until success or retries exhausted.
func (rc *RegistryChecker) WaitHealthy() bool {
	for i := 0; i < rc.retries; i++ {
		if ok, _, _ := rc.CheckOnce(); ok {
			return true
		}
		time.Sleep(rc.delay)
	}
	return false
}
