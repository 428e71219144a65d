package quota

import (
	"time"

	"github.com/bassamhamid/grammarbot/internal/store"
)

// Record is the quota-relevant slice of a user document.
type Record struct {
	RequestCount int
	ResetTime    int64 // unix seconds, zero when unset
	IsPremium    bool
	LastRequest  int64
}

func recordFrom(u *store.User) Record {
	return Record{
		RequestCount: u.RequestCount,
		ResetTime:    u.ResetTime,
		IsPremium:    u.IsPremium,
		LastRequest:  u.LastRequest,
	}
}

// CheckResult is the outcome of a request-count check.
type CheckResult struct {
	Allowed   bool
	TimeLeft  time.Duration
	CharLimit int
}

// Status is a read-only view of a user's quota, used for display and the admin API.
type Status struct {
	UserID       int64     `json:"user_id"`
	Tier         Tier      `json:"tier"`
	RequestCount int       `json:"request_count"`
	RequestLimit int       `json:"request_limit"`
	Remaining    int       `json:"remaining"`
	CharLimit    int       `json:"char_limit"`
	ResetAt      time.Time `json:"reset_at"`
}
