package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ErrOpen is returned when the circuit breaker short-circuits a call.
var ErrOpen = circuitbreaker.ErrOpen

// TransientError marks a failure as retryable: rate limiting, connection
// errors, upstream server errors. Non-transient failures are surfaced
// immediately without retry and do not trip the breaker.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Config bounds retries and the circuit breaker for one collaborator.
type Config struct {
	Name string

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// BreakerThreshold is the number of consecutive counted failures that
	// opens the circuit. BreakerCooldown is how long it stays open before a
	// single probe call is allowed through.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "external-api"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = time.Minute
	}
	return c
}

// NewExecutor builds a failsafe executor combining exponential-backoff retry
// and a consecutive-failure circuit breaker. Only transient errors are
// retried or counted against the breaker.
func NewExecutor[T any](cfg Config) failsafe.Executor[T] {
	cfg = cfg.withDefaults()

	retry := retrypolicy.NewBuilder[T]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ T, err error) bool {
			return IsTransient(err)
		}).
		Build()

	breaker := circuitbreaker.NewBuilder[T]().
		WithFailureThreshold(uint(cfg.BreakerThreshold)).
		WithDelay(cfg.BreakerCooldown).
		WithSuccessThreshold(1).
		HandleIf(func(_ T, err error) bool {
			return IsTransient(err)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"name", cfg.Name,
				"from", stateName(event.OldState),
				"to", stateName(event.NewState))
		}).
		Build()

	// Breaker innermost so retries observe its state and stop once open.
	return failsafe.With(retry, breaker)
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}
