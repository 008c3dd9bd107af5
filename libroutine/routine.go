// Package libroutine guards repeated operations with a circuit breaker.
package libroutine

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("libroutine: circuit open")

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Routine opens after threshold consecutive failures and lets a single
// probe through once resetTimeout has passed.
type Routine struct {
	mu            sync.Mutex
	state         State
	failures      int
	threshold     int
	resetTimeout  time.Duration
	lastFailure   time.Time
	probeInFlight bool
}

func NewRoutine(threshold int, resetTimeout time.Duration) *Routine {
	if threshold < 1 {
		threshold = 1
	}
	return &Routine{threshold: threshold, resetTimeout: resetTimeout}
}

// Allow reports whether a call may run now. In the half-open state only
// the first caller is admitted.
func (r *Routine) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Open {
		if time.Since(r.lastFailure) < r.resetTimeout {
			return false
		}
		r.state = HalfOpen
		r.probeInFlight = false
	}
	if r.state == HalfOpen {
		if r.probeInFlight {
			return false
		}
		r.probeInFlight = true
	}
	return true
}

func (r *Routine) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		r.state = Closed
		r.failures = 0
		r.probeInFlight = false
		return
	}
	r.failures++
	r.lastFailure = time.Now()
	if r.state == HalfOpen || r.failures >= r.threshold {
		r.state = Open
		r.probeInFlight = false
	}
}

// Execute runs fn unless the circuit is open.
func (r *Routine) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.Allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	r.record(err)
	return err
}

// ExecuteWithRetry calls Execute up to attempts times, waiting interval
// between tries. It stops early when the circuit opens or ctx is done.
func (r *Routine) ExecuteWithRetry(ctx context.Context, interval time.Duration, attempts int, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = r.Execute(ctx, fn)
		if err == nil || errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return err
}

// Loop runs fn right away, then on every tick and every trigger, until ctx
// is done. Errors, including ErrCircuitOpen, go to onErr.
func (r *Routine) Loop(ctx context.Context, interval time.Duration, trigger <-chan struct{}, fn func(ctx context.Context) error, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		if err := r.Execute(ctx, fn); err != nil {
			onErr(err)
		}
	}
	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		case <-trigger:
			run()
		}
	}
}

func (r *Routine) ForceOpen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Open
	r.lastFailure = time.Now()
	r.probeInFlight = false
}

func (r *Routine) ForceClose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Closed
	r.failures = 0
	r.probeInFlight = false
}

func (r *Routine) GetState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Routine) GetThreshold() int {
	return r.threshold
}

func (r *Routine) GetResetTimeout() time.Duration {
	return r.resetTimeout
}
