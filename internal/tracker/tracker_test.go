package tracker

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"payguard/internal/ledger"
)

func newTestTracker() (*Tracker, *ledger.MemoryStore) {
	store := ledger.NewMemoryStore()
	return New(store, zerolog.Nop()), store
}

func TestTrackerTotalsMatchRecords(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	for _, amount := range []int64{80_000_000, 0, 5} {
		if err := tr.RecordOutgoing(ctx, "daily-cap", ledger.ScopeGlobal, big.NewInt(amount)); err != nil {
			t.Fatalf("RecordOutgoing: %v", err)
		}
	}

	total, err := tr.GetOutgoingTotal(ctx, "daily-cap", ledger.ScopeGlobal, 0)
	if err != nil {
		t.Fatalf("GetOutgoingTotal: %v", err)
	}
	if total.Int64() != 80_000_005 {
		t.Fatalf("total = %s, want 80000005", total)
	}

	incoming, _ := tr.GetIncomingTotal(ctx, "daily-cap", ledger.ScopeGlobal, 0)
	if incoming.Sign() != 0 {
		t.Fatalf("incoming total = %s, want 0", incoming)
	}
}

func TestCheckOutgoingLimitBoundary(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	// Existing total of 80 USD against a 100 USD cap (6-decimal base units).
	if err := tr.RecordOutgoing(ctx, "daily-cap", ledger.ScopeGlobal, big.NewInt(80_000_000)); err != nil {
		t.Fatalf("RecordOutgoing: %v", err)
	}
	maxTotal := big.NewInt(100_000_000)

	denied, err := tr.CheckOutgoingLimit(ctx, "daily-cap", ledger.ScopeGlobal, maxTotal, time.Hour, big.NewInt(25_000_000))
	if err != nil {
		t.Fatalf("CheckOutgoingLimit: %v", err)
	}
	if denied.Allowed {
		t.Fatal("105 USD projected against a 100 USD cap must be denied")
	}
	if !strings.Contains(denied.Reason, "limit exceeded") || !strings.Contains(denied.Reason, "daily-cap") {
		t.Fatalf("reason = %q", denied.Reason)
	}
	if denied.CurrentTotal.Int64() != 80_000_000 {
		t.Fatalf("currentTotal = %s", denied.CurrentTotal)
	}

	allowed, err := tr.CheckOutgoingLimit(ctx, "daily-cap", ledger.ScopeGlobal, maxTotal, time.Hour, big.NewInt(20_000_000))
	if err != nil {
		t.Fatalf("CheckOutgoingLimit: %v", err)
	}
	if !allowed.Allowed {
		t.Fatal("exactly reaching the cap must be allowed")
	}
}

func TestCheckIncomingLimitMirrors(t *testing.T) {
	tr, _ := newTestTracker()
	ctx := context.Background()

	_ = tr.RecordIncoming(ctx, "g", "/premium", big.NewInt(9))
	res, err := tr.CheckIncomingLimit(ctx, "g", "/premium", big.NewInt(10), 0, big.NewInt(2))
	if err != nil {
		t.Fatalf("CheckIncomingLimit: %v", err)
	}
	if res.Allowed {
		t.Fatal("9 + 2 > 10 must be denied")
	}
}

func TestCheckLimitDoesNotRecord(t *testing.T) {
	tr, store := newTestTracker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tr.CheckOutgoingLimit(ctx, "g", ledger.ScopeGlobal, big.NewInt(100), 0, big.NewInt(10)); err != nil {
			t.Fatalf("CheckOutgoingLimit: %v", err)
		}
	}

	records, _ := store.GetAllRecords(ctx, ledger.Filter{})
	if len(records) != 0 {
		t.Fatalf("checks reserved quota: %d records", len(records))
	}
}

type failingStore struct{ err error }

func (f *failingStore) RecordPayment(context.Context, string, string, ledger.Direction, *big.Int) error {
	return f.err
}

func (f *failingStore) GetTotal(context.Context, string, string, ledger.Direction, time.Duration) (*big.Int, error) {
	return nil, f.err
}

func (f *failingStore) GetAllRecords(context.Context, ledger.Filter) ([]ledger.PaymentRecord, error) {
	return nil, f.err
}

func (f *failingStore) Clear(context.Context) error { return f.err }

func TestStorageFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	tr := New(&failingStore{err: boom}, zerolog.Nop())
	ctx := context.Background()

	if _, err := tr.CheckOutgoingLimit(ctx, "g", ledger.ScopeGlobal, big.NewInt(1), 0, big.NewInt(1)); !errors.Is(err, boom) {
		t.Fatalf("check error = %v, want wrapped store failure", err)
	}
	if err := tr.RecordIncoming(ctx, "g", ledger.ScopeGlobal, big.NewInt(1)); !errors.Is(err, boom) {
		t.Fatalf("record error = %v, want store failure", err)
	}
}
