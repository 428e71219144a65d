// Package store persists per-user quota documents and the aggregate stats document.
package store

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every failure to reach the backing store.
var ErrUnavailable = errors.New("store unavailable")

// Store is a document store with one document per user and one stats document.
// Updates are partial merges; there are no transactions.
type Store interface {
	// GetUser returns nil, nil when the user has no document.
	GetUser(ctx context.Context, userID int64) (*User, error)
	UpdateUser(ctx context.Context, userID int64, fields Fields) error
	DeleteUserFields(ctx context.Context, userID int64, fields ...string) error
	ScanUsers(ctx context.Context, fn func(*User) error) error

	GetStats(ctx context.Context) (*Stats, error)
	UpdateStats(ctx context.Context, fields Fields) error
	IncrStats(ctx context.Context, field string, delta int64) error
}
