package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without calling through while the breaker is open
// or its half-open probe budget is spent.
var ErrOpen = errors.New("circuit breaker open")

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

type Config struct {
	Name                string
	FailureThreshold    int           // consecutive failures that open the circuit
	SuccessThreshold    int           // half-open successes that close it again
	OpenTimeout         time.Duration // time spent open before probing
	MaxRequestsHalfOpen int

	// IsFailure decides which errors count against the circuit. nil counts
	// every non-nil error.
	IsFailure func(error) bool
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		MaxRequestsHalfOpen: 3,
	}
}

type Breaker struct {
	cfg Config
	now func() time.Time

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	halfOpenInFlight int
	openedAt         time.Time

	onStateChange func(name string, from, to State)
}

func New(cfg Config) *Breaker {
	if cfg.MaxRequestsHalfOpen <= 0 {
		cfg.MaxRequestsHalfOpen = 1
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers a callback invoked synchronously, outside the
// breaker lock, after each transition.
func (b *Breaker) OnStateChange(fn func(name string, from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Do calls fn unless the circuit is open.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := DoValue(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for functions returning a result. fn errors are returned
// unchanged so callers can still match them.
func DoValue[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.acquire(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	b.record(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrOpen
		}
		transition = b.transitionLocked(StateHalfOpen)
		b.halfOpenInFlight++
		return nil
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.MaxRequestsHalfOpen {
			return ErrOpen
		}
		b.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	failed := err != nil
	if failed && b.cfg.IsFailure != nil {
		failed = b.cfg.IsFailure(err)
	}

	b.mu.Lock()
	var transition func()
	defer func() {
		b.mu.Unlock()
		if transition != nil {
			transition()
		}
	}()

	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if failed {
		b.successes = 0
		b.failures++
		switch b.state {
		case StateClosed:
			if b.failures >= b.cfg.FailureThreshold {
				transition = b.transitionLocked(StateOpen)
			}
		case StateHalfOpen:
			transition = b.transitionLocked(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			transition = b.transitionLocked(StateClosed)
		}
	}
}

// transitionLocked switches state and returns the callback to run once the
// lock is released.
func (b *Breaker) transitionLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	b.halfOpenInFlight = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}

	cb := b.onStateChange
	if cb == nil {
		return nil
	}
	name := b.cfg.Name
	return func() { cb(name, from, to) }
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	transition := b.transitionLocked(StateClosed)
	b.mu.Unlock()
	if transition != nil {
		transition()
	}
}
