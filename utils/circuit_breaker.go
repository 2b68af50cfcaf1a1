package utils

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker shields the engine from a failing payment gateway.
// After repeated failures it opens and rejects calls outright; once the
// cooldown elapses a single probe is admitted half-open, and its outcome
// decides whether the breaker closes again or re-opens.
type CircuitBreaker struct {
	name string

	maxConsecutive uint32
	minRequests    uint32
	failureRatio   float64
	window         time.Duration
	cooldown       time.Duration

	mu       sync.Mutex
	state    breakerState
	requests uint32
	failures uint32
	streak   uint32
	openedAt time.Time
	windowAt time.Time
	probing  bool
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:           name,
		maxConsecutive: 5,
		minRequests:    20,
		failureRatio:   0.6,
		window:         time.Minute,
		cooldown:       30 * time.Second,
	}
}

// Execute runs req unless the breaker is open. The request's own error
// is passed through untouched; an open breaker fails fast without
// calling req.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (interface{}, error)) (interface{}, error) {
	if err := cb.admit(); err != nil {
		return nil, err
	}

	result, err := req()
	cb.observe(err == nil)
	return result, err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	switch cb.state {
	case breakerOpen:
		if now.Sub(cb.openedAt) < cb.cooldown {
			return fmt.Errorf("circuit breaker %s is open", cb.name)
		}
		cb.state = breakerHalfOpen
		cb.probing = false
		fallthrough

	case breakerHalfOpen:
		if cb.probing {
			return fmt.Errorf("circuit breaker %s is probing", cb.name)
		}
		cb.probing = true
		return nil
	}

	if now.Sub(cb.windowAt) > cb.window {
		cb.requests, cb.failures = 0, 0
		cb.windowAt = now
	}
	cb.requests++
	return nil
}

func (cb *CircuitBreaker) observe(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerHalfOpen {
		cb.probing = false
		if success {
			cb.state = breakerClosed
			cb.requests, cb.failures, cb.streak = 0, 0, 0
		} else {
			cb.trip()
		}
		return
	}

	if success {
		cb.streak = 0
		return
	}

	cb.failures++
	cb.streak++
	if cb.streak >= cb.maxConsecutive ||
		(cb.requests >= cb.minRequests && float64(cb.failures)/float64(cb.requests) >= cb.failureRatio) {
		cb.trip()
	}
}

// trip must be called with the mutex held.
func (cb *CircuitBreaker) trip() {
	cb.state = breakerOpen
	cb.openedAt = time.Now()
	cb.requests, cb.failures, cb.streak = 0, 0, 0
}
