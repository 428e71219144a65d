package quota

import (
	"time"

	"github.com/bassamhamid/grammarbot/internal/config"
)

// Tier is the closed set of service levels a user can be on.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

func tierOf(premium bool) Tier {
	if premium {
		return TierPremium
	}
	return TierFree
}

// Policy is the limit triple applied to one tier.
type Policy struct {
	CharLimit    int
	RequestLimit int
	ResetHours   int
}

// Window is the length of one usage window.
func (p Policy) Window() time.Duration {
	return time.Duration(p.ResetHours) * time.Hour
}

// Policies holds the free and premium policies.
type Policies struct {
	Free    Policy
	Premium Policy
}

func NewPolicies(cfg config.QuotaConfig) Policies {
	return Policies{
		Free:    Policy(cfg.Free),
		Premium: Policy(cfg.Premium),
	}
}

// PolicyFor returns the limits for the given tier.
func (p Policies) PolicyFor(t Tier) Policy {
	if t == TierPremium {
		return p.Premium
	}
	return p.Free
}
