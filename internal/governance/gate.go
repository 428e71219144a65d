package governance

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/metrics"
)

// DecisionKind is the outcome of an authorization.
type DecisionKind string

const (
	Allowed          DecisionKind = "ALLOWED"
	OverCharLimit    DecisionKind = "OVER_CHAR_LIMIT"
	OverRequestLimit DecisionKind = "OVER_REQUEST_LIMIT"
)

// Decision carries the outcome plus what the caller needs to explain it.
type Decision struct {
	Kind      DecisionKind
	CharLimit int
	TimeLeft  time.Duration
}

// Ledger is the usage ledger as seen by the gate.
type Ledger interface {
	Check(ctx context.Context, userID int64) quota.CheckResult
	Consume(ctx context.Context, userID int64) error
}

// TierSource resolves a user's current tier.
type TierSource interface {
	IsPremium(ctx context.Context, userID int64) bool
}

// Gate is the entry point the message pipeline calls before doing any LLM work.
type Gate struct {
	tiers    TierSource
	policies quota.Policies
	ledger   Ledger
}

func NewGate(tiers TierSource, policies quota.Policies, ledger Ledger) *Gate {
	return &Gate{tiers: tiers, policies: policies, ledger: ledger}
}

// Authorize decides whether text from userID may be processed now.
// The character limit is enforced before the request count is read.
func (g *Gate) Authorize(ctx context.Context, userID int64, text string) Decision {
	tier := quota.TierFree
	if g.tiers.IsPremium(ctx, userID) {
		tier = quota.TierPremium
	}
	policy := g.policies.PolicyFor(tier)

	if utf8.RuneCountInString(text) > policy.CharLimit {
		return g.record(Decision{Kind: OverCharLimit, CharLimit: policy.CharLimit})
	}

	res := g.ledger.Check(ctx, userID)
	if !res.Allowed {
		return g.record(Decision{Kind: OverRequestLimit, CharLimit: res.CharLimit, TimeLeft: res.TimeLeft})
	}
	return g.record(Decision{Kind: Allowed, CharLimit: res.CharLimit})
}

// Consume charges one request. Call it only after the protected action succeeded.
func (g *Gate) Consume(ctx context.Context, userID int64) error {
	return g.ledger.Consume(ctx, userID)
}

func (g *Gate) IsPremium(ctx context.Context, userID int64) bool {
	return g.tiers.IsPremium(ctx, userID)
}

func (g *Gate) record(d Decision) Decision {
	metrics.GateDecisionsTotal.WithLabelValues(string(d.Kind)).Inc()
	return d
}
