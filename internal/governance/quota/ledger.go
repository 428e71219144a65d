package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/metrics"
	"github.com/bassamhamid/grammarbot/internal/store"
)

// TierSource resolves a user's current tier.
type TierSource interface {
	Lookup(ctx context.Context, userID int64) (bool, error)
}

// Ledger tracks per-user request counts inside rolling usage windows.
// Windows roll over lazily when a check or consume observes an expired reset time.
// Operations for the same user are not serialized.
type Ledger struct {
	store    UserStore
	tiers    TierSource
	policies Policies
	clock    clock.Clock
}

func NewLedger(s UserStore, tiers TierSource, policies Policies, clk clock.Clock) *Ledger {
	return &Ledger{
		store:    s,
		tiers:    tiers,
		policies: policies,
		clock:    clk,
	}
}

// rollover starts a new window when now is past the record's reset time.
// Records with no reset time are left alone.
func rollover(rec Record, p Policy, now time.Time) (Record, bool) {
	if rec.ResetTime == 0 || now.Unix() <= rec.ResetTime {
		return rec, false
	}
	rec.RequestCount = 0
	rec.ResetTime = now.Add(p.Window()).Unix()
	return rec, true
}

func timeLeft(resetTime int64, now time.Time) time.Duration {
	left := time.Unix(resetTime, 0).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// premium resolves the tier. A failed lookup counts as free and known is false.
func (l *Ledger) premium(ctx context.Context, userID int64) (premium, known bool) {
	premium, err := l.tiers.Lookup(ctx, userID)
	if err != nil {
		slog.Warn("quota: tier lookup failed, treating as free", "user_id", userID, "error", err)
		return false, false
	}
	return premium, true
}

func (l *Ledger) failOpen(userID int64, err error) CheckResult {
	metrics.QuotaFailOpenTotal.Inc()
	slog.Warn("quota: store unavailable, allowing request", "user_id", userID, "error", err)
	return CheckResult{Allowed: true, CharLimit: l.policies.Free.CharLimit}
}

// Check reports whether the user may make another request in the current window.
// It creates missing records and persists rollovers. If the store cannot be
// reached the request is allowed with the free character limit.
func (l *Ledger) Check(ctx context.Context, userID int64) CheckResult {
	premium, _ := l.premium(ctx, userID)
	policy := l.policies.PolicyFor(tierOf(premium))
	now := l.clock.Now()

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return l.failOpen(userID, err)
	}

	if u == nil || u.Malformed || u.ResetTime == 0 {
		rec := Record{ResetTime: now.Add(policy.Window()).Unix()}
		fields := store.Fields{
			store.FieldRequestCount: 0,
			store.FieldResetTime:    rec.ResetTime,
		}
		if u == nil {
			fields[store.FieldIsPremium] = false
		} else {
			slog.Warn("quota: resetting malformed record", "user_id", userID)
		}
		if err := l.store.UpdateUser(ctx, userID, fields); err != nil {
			return l.failOpen(userID, err)
		}
		return CheckResult{
			Allowed:   rec.RequestCount < policy.RequestLimit,
			TimeLeft:  timeLeft(rec.ResetTime, now),
			CharLimit: policy.CharLimit,
		}
	}

	rec, rolled := rollover(recordFrom(u), policy, now)
	if rolled {
		err := l.store.UpdateUser(ctx, userID, store.Fields{
			store.FieldRequestCount: rec.RequestCount,
			store.FieldResetTime:    rec.ResetTime,
		})
		if err != nil {
			return l.failOpen(userID, err)
		}
		metrics.QuotaRolloversTotal.Inc()
		slog.Debug("quota: window rolled over", "user_id", userID, "reset_time", rec.ResetTime)
		return CheckResult{Allowed: true, CharLimit: policy.CharLimit}
	}

	return CheckResult{
		Allowed:   rec.RequestCount < policy.RequestLimit,
		TimeLeft:  timeLeft(rec.ResetTime, now),
		CharLimit: policy.CharLimit,
	}
}

// Consume charges one request to the user. Call it only after the protected
// action has succeeded. The count never goes down and never exceeds the
// request limit by more than one.
func (l *Ledger) Consume(ctx context.Context, userID int64) error {
	premium, known := l.premium(ctx, userID)
	tier := tierOf(premium)
	policy := l.policies.PolicyFor(tier)
	now := l.clock.Now()

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("consuming quota: %w", err)
	}

	var rec Record
	if u != nil {
		rec = recordFrom(u)
	}
	rec, rolled := rollover(rec, policy, now)
	if rolled {
		metrics.QuotaRolloversTotal.Inc()
	}

	switch {
	case rec.RequestCount <= policy.RequestLimit:
		rec.RequestCount++
	default:
		slog.Warn("quota: consume over limit, count not incremented",
			"user_id", userID, "count", rec.RequestCount, "limit", policy.RequestLimit)
	}
	if rec.ResetTime == 0 {
		rec.ResetTime = now.Add(policy.Window()).Unix()
	}

	fields := store.Fields{
		store.FieldRequestCount: rec.RequestCount,
		store.FieldLastRequest:  now.Unix(),
		store.FieldResetTime:    rec.ResetTime,
	}
	// A failed tier lookup must not overwrite a stored premium flag.
	if known {
		fields[store.FieldIsPremium] = premium
	}
	err = l.store.UpdateUser(ctx, userID, fields)
	if err != nil {
		return fmt.Errorf("consuming quota: %w", err)
	}

	metrics.QuotaConsumedTotal.WithLabelValues(string(tier)).Inc()
	return nil
}

// Status returns the user's quota as it would be seen by the next check.
// It never writes.
func (l *Ledger) Status(ctx context.Context, userID int64) (*Status, error) {
	premium, _ := l.premium(ctx, userID)
	tier := tierOf(premium)
	policy := l.policies.PolicyFor(tier)
	now := l.clock.Now()

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting quota status: %w", err)
	}

	var rec Record
	if u != nil && !u.Malformed {
		rec = recordFrom(u)
	}
	rec, _ = rollover(rec, policy, now)
	if rec.ResetTime == 0 {
		rec.RequestCount = 0
		rec.ResetTime = now.Add(policy.Window()).Unix()
	}

	return &Status{
		UserID:       userID,
		Tier:         tier,
		RequestCount: rec.RequestCount,
		RequestLimit: policy.RequestLimit,
		Remaining:    max(0, policy.RequestLimit-rec.RequestCount),
		CharLimit:    policy.CharLimit,
		ResetAt:      time.Unix(rec.ResetTime, 0).UTC(),
	}, nil
}
