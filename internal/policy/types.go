// Package policy holds the validated payment policy configuration and the
// pure evaluation functions that decide whether a transfer may proceed.
package policy

import (
	"encoding/json"
	"math/big"
	"time"
)

// Limit caps transfers aggregated under one scope. USD amounts are kept as
// their original JSON literals and converted exactly to base units when the
// document is parsed; a malformed value is a load-time error, never a
// request-time one.
type Limit struct {
	MaxPaymentUSD json.Number `json:"maxPaymentUsd,omitempty"`
	MaxTotalUSD   json.Number `json:"maxTotalUsd,omitempty"`
	WindowMs      int64       `json:"windowMs,omitempty"`

	maxPayment *big.Int
	maxTotal   *big.Int
}

// MaxPayment returns the per-payment cap in base units, or nil when unset.
func (l *Limit) MaxPayment() *big.Int { return l.maxPayment }

// MaxTotal returns the windowed-total cap in base units, or nil when unset.
func (l *Limit) MaxTotal() *big.Int { return l.maxTotal }

// Window returns the aggregation window; zero means all time.
func (l *Limit) Window() time.Duration {
	return time.Duration(l.WindowMs) * time.Millisecond
}

// LimitSet holds one direction's limits, from least to most specific.
type LimitSet struct {
	Global      *Limit            `json:"global,omitempty"`
	PerSender   map[string]*Limit `json:"perSender,omitempty"`
	PerTarget   map[string]*Limit `json:"perTarget,omitempty"`
	PerEndpoint map[string]*Limit `json:"perEndpoint,omitempty"`
}

// RateLimit caps the number of completed payments per window.
type RateLimit struct {
	MaxPayments int   `json:"maxPayments"`
	WindowMs    int64 `json:"windowMs"`
}

// Window returns the counting window.
func (r *RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// Group is a named bundle of rules. Groups are evaluated independently: a
// transfer must pass every group that applies limits to it.
type Group struct {
	Name              string     `json:"name"`
	OutgoingLimits    *LimitSet  `json:"outgoingLimits,omitempty"`
	IncomingLimits    *LimitSet  `json:"incomingLimits,omitempty"`
	RateLimits        *RateLimit `json:"rateLimits,omitempty"`
	AllowedRecipients []string   `json:"allowedRecipients,omitempty"`
	BlockedRecipients []string   `json:"blockedRecipients,omitempty"`
	AllowedSenders    []string   `json:"allowedSenders,omitempty"`
	BlockedSenders    []string   `json:"blockedSenders,omitempty"`
}

// Document is the top-level policy configuration.
type Document struct {
	PolicyGroups []Group `json:"policyGroups"`
}

// Decision is the outcome of an allow/block or limit evaluation.
type Decision struct {
	Allowed   bool
	Reason    string
	GroupName string
}

func allow(group string) Decision {
	return Decision{Allowed: true, GroupName: group}
}

func deny(group, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, GroupName: group}
}
