package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Contents are lost on
// restart, which is acceptable for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	records  []PaymentRecord
	tenantID string
	now      func() time.Time
}

// MemoryOption tunes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTenant stamps every record with a tenant identifier, mirroring the
// durable store's partitioning.
func WithTenant(id string) MemoryOption {
	return func(s *MemoryStore) { s.tenantID = id }
}

// WithClock overrides the time source. Used by tests to control windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore constructs an empty volatile store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment appends a record. Never fails for valid input.
func (s *MemoryStore) RecordPayment(_ context.Context, groupName, scope string, direction Direction, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, PaymentRecord{
		GroupName: groupName,
		Scope:     scope,
		Direction: direction,
		Amount:    new(big.Int).Set(amount),
		Timestamp: s.now().UTC(),
		TenantID:  s.tenantID,
	})
	return nil
}

// GetTotal sums matching record amounts within the window.
func (s *MemoryStore) GetTotal(_ context.Context, groupName, scope string, direction Direction, window time.Duration) (*big.Int, error) {
	var cutoff time.Time
	if window > 0 {
		cutoff = s.now().UTC().Add(-window)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := new(big.Int)
	for _, r := range s.records {
		if r.GroupName != groupName || r.Scope != scope || r.Direction != direction {
			continue
		}
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		total.Add(total, r.Amount)
	}
	return total, nil
}

// GetAllRecords returns copies of matching records in insertion order.
func (s *MemoryStore) GetAllRecords(_ context.Context, f Filter) ([]PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PaymentRecord, 0, len(s.records))
	for _, r := range s.records {
		if !f.matches(r) {
			continue
		}
		copied := r
		copied.Amount = new(big.Int).Set(r.Amount)
		out = append(out, copied)
	}
	return out, nil
}

// Clear drops every record.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
