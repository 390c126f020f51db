// Package tracker wraps the ledger with the check-then-reason operation
// used by policy enforcement.
package tracker

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"payguard/internal/ledger"
	"payguard/internal/money"
)

// CheckResult is the outcome of a windowed-total limit check.
type CheckResult struct {
	Allowed      bool
	Reason       string
	CurrentTotal *big.Int
}

// Tracker records confirmed transfers and answers quota questions. Checks
// are pure read-then-decide: nothing is reserved, and the caller records
// only after the transfer is externally confirmed. Two concurrent checks
// can both observe headroom; the reference behavior accepts that the total
// may then exceed the limit once both record.
type Tracker struct {
	store  ledger.Store
	logger zerolog.Logger
}

// New wires a ledger store into a tracker.
func New(store ledger.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger.With().Str("component", "tracker").Logger(),
	}
}

// RecordOutgoing appends a confirmed transfer away from this service.
func (t *Tracker) RecordOutgoing(ctx context.Context, groupName, scope string, amount *big.Int) error {
	return t.store.RecordPayment(ctx, groupName, scope, ledger.Outgoing, amount)
}

// RecordIncoming appends a confirmed transfer toward this service.
func (t *Tracker) RecordIncoming(ctx context.Context, groupName, scope string, amount *big.Int) error {
	return t.store.RecordPayment(ctx, groupName, scope, ledger.Incoming, amount)
}

// GetOutgoingTotal sums outgoing transfers within the window (0 = all time).
func (t *Tracker) GetOutgoingTotal(ctx context.Context, groupName, scope string, window time.Duration) (*big.Int, error) {
	return t.store.GetTotal(ctx, groupName, scope, ledger.Outgoing, window)
}

// GetIncomingTotal sums incoming transfers within the window (0 = all time).
func (t *Tracker) GetIncomingTotal(ctx context.Context, groupName, scope string, window time.Duration) (*big.Int, error) {
	return t.store.GetTotal(ctx, groupName, scope, ledger.Incoming, window)
}

// CheckOutgoingLimit reports whether candidate would keep the windowed
// outgoing total at or under maxTotal base units. A store failure
// propagates; callers must treat it as a denial.
func (t *Tracker) CheckOutgoingLimit(ctx context.Context, groupName, scope string, maxTotal *big.Int, window time.Duration, candidate *big.Int) (CheckResult, error) {
	return t.checkLimit(ctx, groupName, scope, ledger.Outgoing, maxTotal, window, candidate)
}

// CheckIncomingLimit is the receiving-side mirror of CheckOutgoingLimit.
func (t *Tracker) CheckIncomingLimit(ctx context.Context, groupName, scope string, maxTotal *big.Int, window time.Duration, candidate *big.Int) (CheckResult, error) {
	return t.checkLimit(ctx, groupName, scope, ledger.Incoming, maxTotal, window, candidate)
}

func (t *Tracker) checkLimit(ctx context.Context, groupName, scope string, direction ledger.Direction, maxTotal *big.Int, window time.Duration, candidate *big.Int) (CheckResult, error) {
	current, err := t.store.GetTotal(ctx, groupName, scope, direction, window)
	if err != nil {
		return CheckResult{}, fmt.Errorf("get %s total for group %q scope %q: %w", direction, groupName, scope, err)
	}
	if candidate == nil {
		candidate = big.NewInt(0)
	}

	projected := new(big.Int).Add(current, candidate)
	if projected.Cmp(maxTotal) > 0 {
		return CheckResult{
			Allowed: false,
			Reason: fmt.Sprintf("%s limit exceeded for group %q scope %q: %s + %s would exceed %s USD",
				direction, groupName, scope,
				money.FormatUSD(current), money.FormatUSD(candidate), money.FormatUSD(maxTotal)),
			CurrentTotal: current,
		}, nil
	}
	return CheckResult{Allowed: true, CurrentTotal: current}, nil
}
