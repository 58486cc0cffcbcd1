// Package resilience wraps outbound HTTP calls to upstreams (the air quality
// source and remote model servers) with a circuit breaker, an optional bounded
// retry, and a registry that reports each upstream's health.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes when an upstream is skipped.
//
// Every upstream in this service has a local substitute (mock data, a fallback
// estimate), so an open breaker only means the substitute is used without
// waiting for another timeout.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker after this many failures in a row.
	// Default: 3
	ConsecutiveFailures uint32

	// MinRequests and FailureRatio trip the breaker on a sustained failure
	// rate within Window. Defaults: 10 and 0.5.
	MinRequests  uint32
	FailureRatio float64

	// Window is the cyclic period for clearing counts while closed.
	// Default: 5 minutes
	Window time.Duration

	// Cooldown is how long an open breaker rejects calls before a probe.
	// Default: 30 seconds
	Cooldown time.Duration

	// Probes is the number of calls let through while half-open.
	// Default: 1
	Probes uint32
}

// DefaultBreakerConfig returns the breaker settings used for every upstream.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{}.withDefaults()
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 3
	}
	if c.MinRequests == 0 {
		c.MinRequests = 10
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.5
	}
	if c.Window == 0 {
		c.Window = 5 * time.Minute
	}
	if c.Cooldown == 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes == 0 {
		c.Probes = 1
	}
	return c
}

// ShouldTrip reports whether counts open the breaker.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

func newBreaker[T any](name string, cfg BreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[T] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.Probes,
		Interval:      cfg.Window,
		Timeout:       cfg.Cooldown,
		ReadyToTrip:   cfg.ShouldTrip,
		OnStateChange: onChange,
	})
}
