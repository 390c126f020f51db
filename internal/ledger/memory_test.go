package ledger

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreTotals(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	amounts := []int64{10, 25, 0, 5}
	for _, a := range amounts {
		if err := store.RecordPayment(ctx, "daily-cap", ScopeGlobal, Outgoing, big.NewInt(a)); err != nil {
			t.Fatalf("RecordPayment: %v", err)
		}
	}

	total, err := store.GetTotal(ctx, "daily-cap", ScopeGlobal, Outgoing, 0)
	if err != nil {
		t.Fatalf("GetTotal: %v", err)
	}
	if total.Int64() != 40 {
		t.Fatalf("total = %s, want 40", total)
	}

	// Zero-amount transfers do not move the total but remain distinct events.
	records, err := store.GetAllRecords(ctx, Filter{GroupName: "daily-cap"})
	if err != nil {
		t.Fatalf("GetAllRecords: %v", err)
	}
	if len(records) != len(amounts) {
		t.Fatalf("record count = %d, want %d", len(records), len(amounts))
	}
}

func TestMemoryStoreDirectionAndScopeIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Outgoing, big.NewInt(7))
	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Incoming, big.NewInt(11))
	_ = store.RecordPayment(ctx, "g", "/premium", Incoming, big.NewInt(13))

	out, _ := store.GetTotal(ctx, "g", ScopeGlobal, Outgoing, 0)
	if out.Int64() != 7 {
		t.Fatalf("outgoing total = %s, want 7", out)
	}
	in, _ := store.GetTotal(ctx, "g", ScopeGlobal, Incoming, 0)
	if in.Int64() != 11 {
		t.Fatalf("incoming global total = %s, want 11", in)
	}
	premium, _ := store.GetTotal(ctx, "g", "/premium", Incoming, 0)
	if premium.Int64() != 13 {
		t.Fatalf("incoming /premium total = %s, want 13", premium)
	}
}

func TestMemoryStoreWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Incoming, big.NewInt(100))

	now = now.Add(90 * time.Second)
	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Incoming, big.NewInt(1))

	windowed, err := store.GetTotal(ctx, "g", ScopeGlobal, Incoming, time.Minute)
	if err != nil {
		t.Fatalf("GetTotal: %v", err)
	}
	if windowed.Int64() != 1 {
		t.Fatalf("windowed total = %s, want 1", windowed)
	}

	all, _ := store.GetTotal(ctx, "g", ScopeGlobal, Incoming, 0)
	if all.Int64() != 101 {
		t.Fatalf("all-time total = %s, want 101", all)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Outgoing, big.NewInt(3))
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	total, _ := store.GetTotal(ctx, "g", ScopeGlobal, Outgoing, 0)
	if total.Sign() != 0 {
		t.Fatalf("total after clear = %s, want 0", total)
	}
}

func TestMemoryStoreRejectsNegativeAmount(t *testing.T) {
	store := NewMemoryStore()
	if err := store.RecordPayment(context.Background(), "g", ScopeGlobal, Outgoing, big.NewInt(-1)); err == nil {
		t.Fatal("negative amount should be rejected")
	}
}

func TestMemoryStoreTenantStamp(t *testing.T) {
	store := NewMemoryStore(WithTenant("acme"))
	ctx := context.Background()

	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Incoming, big.NewInt(1))
	records, _ := store.GetAllRecords(ctx, Filter{})
	if len(records) != 1 || records[0].TenantID != "acme" {
		t.Fatalf("records = %+v, want one record stamped acme", records)
	}
}

func TestMemoryStoreConcurrentRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := store.RecordPayment(ctx, "g", ScopeGlobal, Outgoing, big.NewInt(1)); err != nil {
					t.Errorf("RecordPayment: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	total, err := store.GetTotal(ctx, "g", ScopeGlobal, Outgoing, 0)
	if err != nil {
		t.Fatalf("GetTotal: %v", err)
	}
	if total.Int64() != workers*perWorker {
		t.Fatalf("total = %s, want %d", total, workers*perWorker)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.RecordPayment(ctx, "g", ScopeGlobal, Outgoing, big.NewInt(5))
	records, _ := store.GetAllRecords(ctx, Filter{})
	records[0].Amount.SetInt64(999)

	total, _ := store.GetTotal(ctx, "g", ScopeGlobal, Outgoing, 0)
	if total.Int64() != 5 {
		t.Fatalf("mutating a returned record leaked into the store: total = %s", total)
	}
}
