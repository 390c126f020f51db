package policy

import (
	"math/big"

	"payguard/internal/money"
)

// Kind distinguishes how a priced operation is delivered.
type Kind string

const (
	KindRequest Kind = "request"
	KindStream  Kind = "response-stream"
)

// Price is a resolved price in base units, either flat or split by
// operation kind. Construct via NewFlatPrice/NewSplitPrice so USD literals
// are validated exactly once, at configuration load.
type Price struct {
	flat   *big.Int
	byKind map[Kind]*big.Int
}

// NewFlatPrice builds a kind-independent price from a USD string.
func NewFlatPrice(usd string) (*Price, error) {
	v, err := money.ParseUSD(usd)
	if err != nil {
		return nil, err
	}
	return &Price{flat: v}, nil
}

// NewSplitPrice builds a price that differs between plain requests and
// streamed responses. Either side may be empty, meaning free for that kind.
func NewSplitPrice(requestUSD, streamUSD string) (*Price, error) {
	p := &Price{byKind: make(map[Kind]*big.Int, 2)}
	if requestUSD != "" {
		v, err := money.ParseUSD(requestUSD)
		if err != nil {
			return nil, err
		}
		p.byKind[KindRequest] = v
	}
	if streamUSD != "" {
		v, err := money.ParseUSD(streamUSD)
		if err != nil {
			return nil, err
		}
		p.byKind[KindStream] = v
	}
	return p, nil
}

// For returns the base-unit amount for the given kind, or nil when free.
func (p *Price) For(kind Kind) *big.Int {
	if p == nil {
		return nil
	}
	if p.byKind != nil {
		if v, ok := p.byKind[kind]; ok {
			return v
		}
	}
	return p.flat
}

// Pricing maps entrypoints to prices, with an optional default.
type Pricing struct {
	Default     *Price
	Entrypoints map[string]*Price
}

// ResolvePrice picks the price for an entrypoint and kind. An
// entrypoint-level price overrides the default; nil means the operation
// is free.
func ResolvePrice(entrypoint string, pricing *Pricing, kind Kind) *big.Int {
	if pricing == nil {
		return nil
	}
	if p, ok := pricing.Entrypoints[entrypoint]; ok {
		return p.For(kind)
	}
	return pricing.Default.For(kind)
}
