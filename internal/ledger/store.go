package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrNotConfigured indicates the store has no usable backend.
	ErrNotConfigured = errors.New("ledger: store not configured")
	// ErrNegativeAmount rejects negative transfer amounts at the boundary.
	ErrNegativeAmount = errors.New("ledger: amount cannot be negative")
)

// Store is the append-only payment ledger. Records are created once, when a
// transfer is confirmed, and removed only by Clear. Window filtering applies
// to queries, never to retention.
//
// Implementations must make concurrent RecordPayment calls safe to
// interleave; GetTotal reflects a consistent snapshot at read time.
type Store interface {
	// RecordPayment appends a confirmed transfer. A write failure must
	// propagate so the caller never believes an unrecorded transfer was
	// accounted.
	RecordPayment(ctx context.Context, groupName, scope string, direction Direction, amount *big.Int) error

	// GetTotal sums amounts for the group/scope/direction whose timestamps
	// fall within window of now. A zero window means all time.
	GetTotal(ctx context.Context, groupName, scope string, direction Direction, window time.Duration) (*big.Int, error)

	// GetAllRecords lists records matching the filter, oldest first.
	GetAllRecords(ctx context.Context, f Filter) ([]PaymentRecord, error)

	// Clear removes every record in this store's tenant partition.
	Clear(ctx context.Context) error
}
