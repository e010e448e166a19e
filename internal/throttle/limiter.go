// Package throttle paces requests per host and stops hammering hosts that
// keep failing.
package throttle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pathfinder/internal/config"
	"pathfinder/internal/logging"
	"pathfinder/pkg/utils"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type hostLimiter struct {
	limiter  *rate.Limiter
	requests int64
	failures int64
}

type circuitBreaker struct {
	failureCount int
	lastFailTime time.Time
	state        CircuitState
}

// Limiter manages rate limiting and circuit breaking per host
type Limiter struct {
	mu       sync.Mutex
	hosts    map[string]*hostLimiter
	breakers map[string]*circuitBreaker

	rps          rate.Limit
	burst        int
	maxFailures  int
	resetTimeout time.Duration

	now    func() time.Time
	logger logging.Logger
}

// NewLimiter creates a limiter from the throttle configuration section
func NewLimiter(cfg *config.Config, logger logging.Logger) *Limiter {
	return newLimiter(
		rate.Limit(float64(cfg.Throttle.RateLimit)/60.0),
		cfg.Throttle.Burst,
		cfg.Throttle.MaxFailures,
		cfg.Throttle.ResetTimeout,
		logger,
	)
}

func newLimiter(rps rate.Limit, burst, maxFailures int, resetTimeout time.Duration, logger logging.Logger) *Limiter {
	return &Limiter{
		hosts:        make(map[string]*hostLimiter),
		breakers:     make(map[string]*circuitBreaker),
		rps:          rps,
		burst:        burst,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       logger.WithField("component", "throttle"),
	}
}

// Wait blocks until a request to host is allowed. It fails fast with
// ErrCircuitOpen while the host's breaker is open.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	l.mu.Lock()
	if !l.circuitAllows(host) {
		l.mu.Unlock()
		return fmt.Errorf("%s: %w", host, utils.ErrCircuitOpen)
	}
	hl := l.hostLimiter(host)
	hl.requests++
	l.mu.Unlock()

	return hl.limiter.Wait(ctx)
}

// RecordSuccess closes a half-open breaker
func (l *Limiter) RecordSuccess(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	host = strings.ToLower(host)
	if cb, ok := l.breakers[host]; ok && cb.state != CircuitOpen {
		if cb.state == CircuitHalfOpen {
			l.logger.Info("Circuit breaker closed after successful request", logging.Fields{"host": host})
		}
		cb.state = CircuitClosed
		cb.failureCount = 0
	}
}

// RecordFailure counts a failure and opens the breaker past the threshold
func (l *Limiter) RecordFailure(host string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	host = strings.ToLower(host)
	if hl, ok := l.hosts[host]; ok {
		hl.failures++
	}

	cb := l.breaker(host)
	cb.failureCount++
	cb.lastFailTime = l.now()

	if cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failureCount >= l.maxFailures) {
		cb.state = CircuitOpen
		fields := logging.Fields{"host": host, "failures": cb.failureCount}
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.Warn("Circuit breaker opened due to failures", fields)
	}
}

// State returns the breaker state of host
func (l *Limiter) State(host string) CircuitState {
	l.mu.Lock()
	defer l.mu.Unlock()

	host = strings.ToLower(host)
	if _, ok := l.breakers[host]; !ok {
		return CircuitClosed
	}
	l.circuitAllows(host)
	return l.breakers[host].state
}

// Stats returns counters for every host seen
func (l *Limiter) Stats() map[string]logging.Fields {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := make(map[string]logging.Fields, len(l.hosts))
	for host, hl := range l.hosts {
		s := logging.Fields{"requests": hl.requests, "failures": hl.failures}
		if cb, ok := l.breakers[host]; ok {
			s["circuit_state"] = cb.state.String()
		}
		stats[host] = s
	}
	return stats
}

func (l *Limiter) hostLimiter(host string) *hostLimiter {
	if hl, ok := l.hosts[host]; ok {
		return hl
	}
	hl := &hostLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
	l.hosts[host] = hl
	l.logger.Debug("Created host rate limiter", logging.Fields{
		"host":  host,
		"rate":  float64(l.rps),
		"burst": l.burst,
	})
	return hl
}

func (l *Limiter) breaker(host string) *circuitBreaker {
	if cb, ok := l.breakers[host]; ok {
		return cb
	}
	cb := &circuitBreaker{state: CircuitClosed}
	l.breakers[host] = cb
	return cb
}

// circuitAllows reports whether host may be called, moving an open breaker to
// half-open once the reset timeout has elapsed. Callers hold l.mu.
func (l *Limiter) circuitAllows(host string) bool {
	cb := l.breaker(host)
	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if l.now().Sub(cb.lastFailTime) > l.resetTimeout {
			cb.state = CircuitHalfOpen
			l.logger.Info("Circuit breaker transitioned to half-open", logging.Fields{"host": host})
			return true
		}
	}
	return false
}

// HostOf extracts the lowercased host of a URL, "unknown" when it has none
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
