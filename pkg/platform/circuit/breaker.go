// Package circuit provides a simple circuit breaker for collaborator calls.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and requests flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls should fail fast.
	StateOpen
)

// Breaker tracks consecutive transport failures for one collaborator.
// After FailureThreshold consecutive failures the circuit opens and calls
// fail fast until the cooldown elapses, at which point a single probe call
// is allowed through.
type Breaker struct {
	mu           sync.Mutex
	state        State
	name         string
	failureCount int
	openedAt     time.Time

	failureThreshold int
	cooldown         time.Duration

	now func() time.Time
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the
// circuit. Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before allowing a probe.
// Default is 30 seconds.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging and metrics.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. While open, it returns false
// until the cooldown has elapsed; the first call after the cooldown is let
// through as a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		// Probe: leave the circuit open; a success will close it.
		return true
	}
	return false
}

// RecordFailure records a failed call. Returns true if the circuit just
// transitioned to open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.state == StateOpen {
		b.openedAt = b.now()
		return false
	}
	if b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

// RecordSuccess records a successful call, closing the circuit if open.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
}

// CurrentState returns the current circuit state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
