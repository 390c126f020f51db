// Package guard implements the admission protocol around a priced
// operation: pre-transfer policy checks, facilitator verification, and
// conditional post-transfer accounting.
package guard

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"payguard/internal/money"
	"payguard/internal/policy"
	"payguard/internal/ratelimit"
	"payguard/internal/tracker"
)

// Result is a guard decision. A denial is a structured outcome, never an
// error: storage and limiter failures during checks are folded into a
// denial (fail-closed).
type Result struct {
	Allowed   bool
	Reason    string
	GroupName string
}

func allowed() Result { return Result{Allowed: true} }

// Guard evaluates transfers against every configured policy group. It is
// an explicit instance owned by whoever composes the request pipeline;
// there are no process-wide registries.
type Guard struct {
	groups  []policy.Group
	tracker *tracker.Tracker
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

// New builds a guard over the given policy groups.
func New(groups []policy.Group, tr *tracker.Tracker, limiter ratelimit.Limiter, logger zerolog.Logger) *Guard {
	return &Guard{
		groups:  groups,
		tracker: tr,
		limiter: limiter,
		logger:  logger.With().Str("component", "guard").Logger(),
	}
}

// CheckIncoming runs the pre-transfer stage for a payment toward this
// service. The payer's wallet is not yet known (no proof has been
// presented), so identity checks use the declared network origin only and
// limit resolution can match endpoint and global scopes. Every group that
// applies limits must pass.
func (g *Guard) CheckIncoming(ctx context.Context, networkOrigin, endpointPath string, amount *big.Int) Result {
	for i := range g.groups {
		group := &g.groups[i]

		if d := policy.EvaluateSender(group, "", networkOrigin); !d.Allowed {
			return Result{Reason: d.Reason, GroupName: group.Name}
		}

		limit, scope := policy.FindMostSpecificIncomingLimit(group.IncomingLimits, "", networkOrigin, endpointPath)
		if r := g.checkLimit(ctx, group.Name, scope, limit, amount, incomingSide); !r.Allowed {
			return r
		}

		if r := g.checkRate(ctx, group); !r.Allowed {
			return r
		}
	}
	return allowed()
}

// CheckOutgoing runs the pre-transfer stage for a payment away from this
// service, where the target's wallet and origin are both known up front.
func (g *Guard) CheckOutgoing(ctx context.Context, targetWallet, targetOrigin, endpointPath string, amount *big.Int) Result {
	for i := range g.groups {
		group := &g.groups[i]

		if d := policy.EvaluateRecipient(group, targetWallet, targetOrigin); !d.Allowed {
			return Result{Reason: d.Reason, GroupName: group.Name}
		}

		limit, scope := policy.FindMostSpecificOutgoingLimit(group.OutgoingLimits, targetWallet, targetOrigin, endpointPath)
		if r := g.checkLimit(ctx, group.Name, scope, limit, amount, outgoingSide); !r.Allowed {
			return r
		}

		if r := g.checkRate(ctx, group); !r.Allowed {
			return r
		}
	}
	return allowed()
}

// RecordIncoming runs the post-transfer stage once a settlement receipt is
// available. The payer wallet from the receipt resolves the most specific
// scope per group. Failures are logged and never unwind the completed
// transfer; accounting on this path is best-effort.
func (g *Guard) RecordIncoming(ctx context.Context, payerWallet, networkOrigin, endpointPath string, amount *big.Int) {
	for i := range g.groups {
		group := &g.groups[i]

		limit, scope := policy.FindMostSpecificIncomingLimit(group.IncomingLimits, payerWallet, networkOrigin, endpointPath)
		if limit != nil {
			if err := g.tracker.RecordIncoming(ctx, group.Name, scope, amount); err != nil {
				g.logger.Error().Err(err).
					Str("group", group.Name).Str("scope", scope).
					Msg("failed to record incoming payment")
			}
		}

		g.recordRate(ctx, group)
	}
}

// RecordOutgoing is the post-transfer stage for outgoing payments.
func (g *Guard) RecordOutgoing(ctx context.Context, targetWallet, targetOrigin, endpointPath string, amount *big.Int) {
	for i := range g.groups {
		group := &g.groups[i]

		limit, scope := policy.FindMostSpecificOutgoingLimit(group.OutgoingLimits, targetWallet, targetOrigin, endpointPath)
		if limit != nil {
			if err := g.tracker.RecordOutgoing(ctx, group.Name, scope, amount); err != nil {
				g.logger.Error().Err(err).
					Str("group", group.Name).Str("scope", scope).
					Msg("failed to record outgoing payment")
			}
		}

		g.recordRate(ctx, group)
	}
}

type transferSide int

const (
	incomingSide transferSide = iota
	outgoingSide
)

func (g *Guard) checkLimit(ctx context.Context, groupName, scope string, limit *policy.Limit, amount *big.Int, side transferSide) Result {
	if limit == nil {
		return allowed()
	}

	if maxPayment := limit.MaxPayment(); maxPayment != nil && amount != nil && amount.Cmp(maxPayment) > 0 {
		return Result{
			Reason:    "payment of " + money.FormatUSD(amount) + " USD exceeds the per-payment maximum of " + money.FormatUSD(maxPayment) + " USD",
			GroupName: groupName,
		}
	}

	maxTotal := limit.MaxTotal()
	if maxTotal == nil {
		return allowed()
	}

	var (
		res tracker.CheckResult
		err error
	)
	if side == incomingSide {
		res, err = g.tracker.CheckIncomingLimit(ctx, groupName, scope, maxTotal, limit.Window(), amount)
	} else {
		res, err = g.tracker.CheckOutgoingLimit(ctx, groupName, scope, maxTotal, limit.Window(), amount)
	}
	if err != nil {
		// Unable to determine the current total: deny.
		g.logger.Error().Err(err).Str("group", groupName).Str("scope", scope).Msg("limit check failed")
		return Result{Reason: "payment limit could not be verified", GroupName: groupName}
	}
	if !res.Allowed {
		return Result{Reason: res.Reason, GroupName: groupName}
	}
	return allowed()
}

func (g *Guard) checkRate(ctx context.Context, group *policy.Group) Result {
	rl := group.RateLimits
	if rl == nil {
		return allowed()
	}

	decision, err := g.limiter.CheckLimit(ctx, group.Name, rl.MaxPayments, rl.Window())
	if err != nil {
		g.logger.Error().Err(err).Str("group", group.Name).Msg("rate limit check failed")
		return Result{Reason: "rate limit could not be verified", GroupName: group.Name}
	}
	if !decision.Allowed {
		return Result{Reason: decision.Reason, GroupName: group.Name}
	}
	return allowed()
}

func (g *Guard) recordRate(ctx context.Context, group *policy.Group) {
	if group.RateLimits == nil {
		return
	}
	if err := g.limiter.RecordPayment(ctx, group.Name); err != nil {
		g.logger.Error().Err(err).Str("group", group.Name).Msg("failed to record rate limit event")
	}
}
