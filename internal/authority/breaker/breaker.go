// Package breaker wraps authority network calls in a circuit breaker so
// authority outages do not cascade into the rest of the platform.
package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/rezonia/clearance-engine/internal/model"
)

// Monitor receives circuit state transitions
type Monitor interface {
	StateChange(name string, from, to string)
}

// LogMonitor writes state transitions to a structured logger
type LogMonitor struct {
	Log zerolog.Logger
}

// StateChange implements Monitor
func (m LogMonitor) StateChange(name, from, to string) {
	m.Log.Warn().
		Str("integration", name).
		Str("from", from).
		Str("to", to).
		Msg("circuit breaker state changed")
}

// Breaker guards one authority integration
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// Option configures a Breaker
type Option func(*settings)

type settings struct {
	maxRequests      uint32
	interval         time.Duration
	timeout          time.Duration
	failureThreshold uint32
}

// WithTimeout sets how long the circuit stays open before probing
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithFailureThreshold sets the consecutive-failure count that opens
// the circuit
func WithFailureThreshold(n uint32) Option {
	return func(s *settings) {
		s.failureThreshold = n
	}
}

// New creates a breaker keyed by the authority integration name
func New(name string, monitor Monitor, opts ...Option) *Breaker {
	cfg := &settings{
		maxRequests:      1,
		interval:         60 * time.Second,
		timeout:          30 * time.Second,
		failureThreshold: 5,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.maxRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failureThreshold
		},
	}
	if monitor != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			monitor.StateChange(name, from.String(), to.String())
		}
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the circuit. Open-circuit calls fail fast with
// a retryable error without attempting the network.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, model.NewSubmissionError(model.ErrCodeCircuitOpen,
			"authority integration "+b.name+" is unavailable", true, err)
	}
	return result, err
}

// Name returns the integration name the breaker is keyed by
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state
func (b *Breaker) State() string {
	return b.cb.State().String()
}
