package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned when a provider's breaker is open and the call
// was rejected without touching the network.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs, usually the provider id.
	Name string

	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before transitioning to half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of requests allowed through in half-open state.
	// Default: 2
	HalfOpenMaxSuccesses uint32
}

// CircuitBreakerMetrics holds counters about breaker operations.
type CircuitBreakerMetrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker wraps gobreaker around one provider endpoint.
//
// Closed: requests pass through. After MaxFailures consecutive failures the
// circuit opens and rejects requests. After Timeout it goes half-open and lets
// test requests through; enough successes close it again.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	config  CircuitBreakerConfig
	mu      sync.RWMutex
	metrics CircuitBreakerMetrics
}

// NewCircuitBreaker creates a breaker with default thresholds.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		Name:                 name,
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewCircuitBreakerWithConfig creates a breaker with custom configuration.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "provider"
	}
	cb := &CircuitBreaker{config: config}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("component", "llm").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	cb.breaker = gobreaker.NewCircuitBreaker(settings)
	return cb
}

// Execute runs fn through the breaker. A cancelled context counts as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	select {
	case <-ctx.Done():
		cb.recordFailure()
		return nil, ctx.Err()
	default:
	}

	result, err := cb.breaker.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})

	if err != nil {
		cb.recordFailure()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
	} else {
		cb.recordSuccess()
	}

	return result, err
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	counts := cb.breaker.Counts()
	return CircuitBreakerMetrics{
		TotalRequests:        cb.metrics.TotalRequests,
		TotalSuccesses:       cb.metrics.TotalSuccesses,
		TotalFailures:        cb.metrics.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics.TotalRequests++
	cb.metrics.TotalSuccesses++
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics.TotalRequests++
	cb.metrics.TotalFailures++
}

// execute is the shared wrapper every adapter uses: optional rate limiting,
// then the breaker, with ErrCircuitOpen annotated by provider name.
func execute[T any](ctx context.Context, cb *CircuitBreaker, limiter *rate.Limiter, fn func() (T, error)) (T, error) {
	var zero T
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%s rate limiter: %w", cb.config.Name, err)
		}
	}
	result, err := cb.Execute(ctx, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			return zero, fmt.Errorf("%s circuit breaker open: %w", cb.config.Name, err)
		}
		return zero, err
	}
	return result.(T), nil
}
