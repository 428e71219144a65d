package nats

import (
	"time"

	"github.com/google/uuid"
)

// Stream names.
const (
	StreamUsage = "GRAMMARBOT_USAGE"
)

// Subject constants.
const (
	SubjectUsageConsumed = "grammarbot.usage.consumed"
	SubjectUsageDenied   = "grammarbot.usage.denied"
	SubjectTierChanged   = "grammarbot.usage.tier"
)

// UsageEvent is published after a request has been served and charged.
type UsageEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"` // correct, rewrite
	Tier       string    `json:"tier"`
	Chars      int       `json:"chars"`
	Remaining  int       `json:"remaining"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DenialEvent is published when the gate refuses a request.
type DenialEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	Reason     string    `json:"reason"` // OVER_CHAR_LIMIT, OVER_REQUEST_LIMIT
	Tier       string    `json:"tier"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TierEvent is published when a user activates or removes a personal key.
type TierEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     int64     `json:"user_id"`
	Tier       string    `json:"tier"`
	OccurredAt time.Time `json:"occurred_at"`
}
