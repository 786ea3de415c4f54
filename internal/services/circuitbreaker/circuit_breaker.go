package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitBreakerOpen     = errors.New("circuit breaker is open")
	ErrCircuitBreakerHalfOpen = errors.New("circuit breaker is half-open")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	Name                string
	FailureThreshold    int           // consecutive failures before opening
	SuccessThreshold    int           // half-open successes before closing
	Timeout             time.Duration // open period before probing
	MaxRequestsHalfOpen int

	// IsFailure decides whether an error counts against the breaker. Nil
	// counts every error.
	IsFailure func(error) bool
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(name string, from, to State)
	// Now overrides the clock in tests.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Name:                "carrier",
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

// CircuitBreaker stops calls to the carrier API after repeated failures.
type CircuitBreaker struct {
	config        Config
	state         State
	failureCount  int
	successCount  int
	halfOpenCount int
	openedAt      time.Time
	mu            sync.Mutex
}

// NewCircuitBreaker fills zero thresholds from DefaultConfig.
func NewCircuitBreaker(config Config) *CircuitBreaker {
	defaults := DefaultConfig()
	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRequestsHalfOpen <= 0 {
		config.MaxRequestsHalfOpen = defaults.MaxRequestsHalfOpen
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker rejects the call. A cancelled context is
// returned without touching the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	var transition func()
	defer func() {
		cb.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch cb.state {
	case StateOpen:
		if cb.config.Now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrCircuitBreakerOpen
		}
		transition = cb.setState(StateHalfOpen)
		cb.halfOpenCount = 0
		cb.successCount = 0
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.MaxRequestsHalfOpen {
			return ErrCircuitBreakerHalfOpen
		}
		cb.halfOpenCount++
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	cb.mu.Lock()
	var transition func()
	if err != nil && cb.countsAsFailure(err) {
		transition = cb.onFailure()
	} else {
		transition = cb.onSuccess()
	}
	cb.mu.Unlock()

	if transition != nil {
		transition()
	}
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

func (cb *CircuitBreaker) onFailure() func() {
	cb.failureCount++

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.openedAt = cb.config.Now()
			return cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.openedAt = cb.config.Now()
		return cb.setState(StateOpen)
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() func() {
	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.successCount = 0
			cb.halfOpenCount = 0
			return cb.setState(StateClosed)
		}
	}
	return nil
}

// setState must be called with mu held; the returned func notifies listeners.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.state
	cb.state = to
	if cb.config.OnStateChange == nil || from == to {
		return nil
	}
	name := cb.config.Name
	return func() { cb.config.OnStateChange(name, from, to) }
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetFailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	transition := cb.setState(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCount = 0
	cb.mu.Unlock()

	if transition != nil {
		transition()
	}
}
