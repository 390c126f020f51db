// Package ratelimit counts completed payments per policy group over a
// sliding time window, independently of the ledger.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// ReasonExceeded is the human-readable denial reason.
const ReasonExceeded = "Rate limit exceeded"

// Decision is the outcome of a predictive limit check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter counts payment events per group. CheckLimit is predictive: it is
// run before recording and does not itself record.
type Limiter interface {
	RecordPayment(ctx context.Context, groupName string) error
	CheckLimit(ctx context.Context, groupName string, maxPayments int, window time.Duration) (Decision, error)
	GetCurrentCount(ctx context.Context, groupName string, window time.Duration) (int, error)
	Clear(ctx context.Context) error
}

// MemoryLimiter keeps per-group event timestamps in process memory.
// Entries older than the evaluation window are purged lazily on read.
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

// MemoryLimiterOption tunes a MemoryLimiter.
type MemoryLimiterOption func(*MemoryLimiter)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) MemoryLimiterOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter constructs an empty in-process limiter.
func NewMemoryLimiter(opts ...MemoryLimiterOption) *MemoryLimiter {
	l := &MemoryLimiter{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordPayment appends the current instant to the group's event sequence.
func (l *MemoryLimiter) RecordPayment(_ context.Context, groupName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[groupName] = append(l.events[groupName], l.now().UTC())
	return nil
}

// CheckLimit reports whether one more payment would stay under maxPayments
// within the window. A maxPayments of 0 always denies. A zero window means
// no event is ever current, which disables the limit rather than blocking;
// callers must treat a zero-window configuration as a no-op limit.
func (l *MemoryLimiter) CheckLimit(ctx context.Context, groupName string, maxPayments int, window time.Duration) (Decision, error) {
	count, err := l.GetCurrentCount(ctx, groupName, window)
	if err != nil {
		return Decision{}, err
	}
	if count >= maxPayments {
		return Decision{Allowed: false, Reason: ReasonExceeded}, nil
	}
	return Decision{Allowed: true}, nil
}

// GetCurrentCount purges entries older than the window, then counts the rest.
func (l *MemoryLimiter) GetCurrentCount(_ context.Context, groupName string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, nil
	}
	cutoff := l.now().UTC().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.events[groupName]
	firstCurrent := len(events)
	for i, at := range events {
		if !at.Before(cutoff) {
			firstCurrent = i
			break
		}
	}
	if firstCurrent > 0 {
		events = append([]time.Time(nil), events[firstCurrent:]...)
		if len(events) == 0 {
			delete(l.events, groupName)
		} else {
			l.events[groupName] = events
		}
	}
	return len(events), nil
}

// Clear forgets all recorded events for every group.
func (l *MemoryLimiter) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make(map[string][]time.Time)
	return nil
}
