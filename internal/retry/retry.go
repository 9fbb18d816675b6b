// Package retry keeps per-key attempt bookkeeping and computes backoff
// delays. It never re-invokes the failed operation; callers wait out the
// delay and re-run their own operation.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/treit/faultline/internal/fault"
	"github.com/treit/faultline/internal/taxonomy"
)

// Policy controls retry eligibility and backoff shape.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	Jitter        bool
	Retryable     map[taxonomy.Code]struct{}
}

// DefaultPolicy mirrors the platform defaults: 3 retries, 1s base,
// doubling, capped at 10s, no jitter, taxonomy retryable set.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
		Jitter:        false,
		Retryable:     taxonomy.RetryableCodes(),
	}
}

// Key identifies a retry budget. Two call sites that reuse the same
// (code, component, action) triple share a budget; that collision is a
// deliberate property of the keying scheme, not a bug.
type Key struct {
	Code      taxonomy.Code
	Component string
	Action    string
}

// KeyFor derives the budget key for a fault.
func KeyFor(f *fault.Fault) Key {
	return Key{Code: f.Code, Component: f.Context.Component, Action: f.Context.Action}
}

// Engine tracks attempt counters per key. Counters live only in memory;
// they are created on first failure and deleted on success or exhaustion,
// so a key that eventually resolves leaves nothing behind.
type Engine struct {
	mu       sync.Mutex
	policy   Policy
	attempts map[Key]int
}

// NewEngine builds an engine for the given policy.
func NewEngine(policy Policy) *Engine {
	if policy.Retryable == nil {
		policy.Retryable = taxonomy.RetryableCodes()
	}
	return &Engine{policy: policy, attempts: make(map[Key]int)}
}

// SetPolicy swaps the effective policy. Existing counters keep their counts;
// only eligibility and delay shape change.
func (e *Engine) SetPolicy(policy Policy) {
	if policy.Retryable == nil {
		policy.Retryable = taxonomy.RetryableCodes()
	}
	e.mu.Lock()
	e.policy = policy
	e.mu.Unlock()
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// ShouldRetry reports whether the fault's code is in the retryable set and
// the key's counter is still below MaxRetries.
func (e *Engine) ShouldRetry(f *fault.Fault, key Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.policy.Retryable[f.Code]; !ok {
		return false
	}
	return e.attempts[key] < e.policy.MaxRetries
}

// RecordAttempt increments the key's counter, creating it on first use, and
// returns the new attempt number.
func (e *Engine) RecordAttempt(key Key) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[key]++
	return e.attempts[key]
}

// Attempt is the atomic check-and-increment the handler uses. It returns the
// new attempt number and ok=true while the budget holds. Once the budget is
// exhausted the counter is purged and ok=false is returned; the next failure
// on the same key starts a fresh cycle. Two concurrent failures on one key
// cannot both claim the last attempt slot.
func (e *Engine) Attempt(f *fault.Fault, key Key) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.policy.Retryable[f.Code]; !ok {
		return 0, false
	}
	if e.attempts[key] >= e.policy.MaxRetries {
		delete(e.attempts, key)
		return 0, false
	}
	e.attempts[key]++
	return e.attempts[key], true
}

// Delay computes the backoff for an attempt number:
// min(base * factor^attempt, max), plus up to 10% uniform jitter when enabled.
// With jitter disabled the result is non-decreasing in attempt and never
// exceeds MaxDelay.
func (e *Engine) Delay(attempt int) time.Duration {
	e.mu.Lock()
	p := e.policy
	e.mu.Unlock()

	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt))
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.Jitter {
		d += rand.Float64() * d * 0.1
		if max := float64(p.MaxDelay); d > max {
			d = max
		}
	}
	return time.Duration(d)
}

// Wait sleeps out the backoff for the attempt, returning early with the
// context error if the caller abandons the operation. An abandoned wait
// leaves other keys' counters untouched.
func (e *Engine) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(e.Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Clear removes the counter for a key. Called on success or terminal
// exhaustion so the map stays bounded for keys that resolve.
func (e *Engine) Clear(key Key) {
	e.mu.Lock()
	delete(e.attempts, key)
	e.mu.Unlock()
}

// Reset drops all counters.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.attempts = make(map[Key]int)
	e.mu.Unlock()
}

// Attempts returns a snapshot of the live counters, keyed
// "CODE/component/action", for diagnostics.
func (e *Engine) Attempts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.attempts))
	for k, n := range e.attempts {
		out[string(k.Code)+"/"+k.Component+"/"+k.Action] = n
	}
	return out
}
