package ledger

import (
	"math/big"
	"time"
)

// Direction tells whether value moved away from or toward this service.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// ScopeGlobal is the catch-all scope key used when no more specific
// sender/target/endpoint limit applies.
const ScopeGlobal = "global"

// PaymentRecord is an immutable fact about a confirmed transfer. Amount is
// in base units (see internal/money); a zero amount is a valid record and
// still counts as an event.
type PaymentRecord struct {
	GroupName string
	Scope     string
	Direction Direction
	Amount    *big.Int
	Timestamp time.Time
	TenantID  string
}

// Filter narrows GetAllRecords. Zero values match everything.
type Filter struct {
	GroupName string
	Scope     string
	Direction Direction
}

func (f Filter) matches(r PaymentRecord) bool {
	if f.GroupName != "" && f.GroupName != r.GroupName {
		return false
	}
	if f.Scope != "" && f.Scope != r.Scope {
		return false
	}
	if f.Direction != "" && f.Direction != r.Direction {
		return false
	}
	return true
}
