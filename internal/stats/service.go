// Package stats maintains the aggregate request counters and builds the admin summary.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/store"
)

// Store is the subset of the document store used for statistics.
type Store interface {
	ScanUsers(ctx context.Context, fn func(*store.User) error) error
	GetStats(ctx context.Context) (*store.Stats, error)
	UpdateStats(ctx context.Context, fields store.Fields) error
	IncrStats(ctx context.Context, field string, delta int64) error
}

// Summary is what admins see for /stats.
type Summary struct {
	TotalUsers    int
	ActiveToday   int
	PremiumUsers  int
	BannedUsers   int
	DailyRequests int64
	TotalRequests int64
}

type Service struct {
	store Store
	clock clock.Clock
}

func NewService(s Store, clk clock.Clock) *Service {
	return &Service{store: s, clock: clk}
}

// RecordRequest counts one served request.
func (s *Service) RecordRequest(ctx context.Context) error {
	if err := s.store.IncrStats(ctx, store.FieldTotalRequests, 1); err != nil {
		return fmt.Errorf("incrementing total requests: %w", err)
	}
	if err := s.store.IncrStats(ctx, store.FieldDailyRequests, 1); err != nil {
		return fmt.Errorf("incrementing daily requests: %w", err)
	}
	return s.store.UpdateStats(ctx, store.Fields{store.FieldUpdatedAt: s.clock.Now().Unix()})
}

// ResetDaily zeroes the daily request counter.
func (s *Service) ResetDaily(ctx context.Context) error {
	err := s.store.UpdateStats(ctx, store.Fields{
		store.FieldDailyRequests: 0,
		store.FieldUpdatedAt:     s.clock.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("resetting daily requests: %w", err)
	}
	return nil
}

// Summary walks every user document. Active means last seen on the current UTC day.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	now := s.clock.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()

	sum := &Summary{}
	err := s.store.ScanUsers(ctx, func(u *store.User) error {
		sum.TotalUsers++
		if u.LastActive >= dayStart {
			sum.ActiveToday++
		}
		if u.IsPremium || u.APIKey != "" {
			sum.PremiumUsers++
		}
		if u.IsBanned {
			sum.BannedUsers++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}

	st, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	sum.DailyRequests = st.DailyRequests
	sum.TotalRequests = st.TotalRequests
	return sum, nil
}
