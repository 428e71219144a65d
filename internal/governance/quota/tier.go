package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bassamhamid/grammarbot/internal/store"
)

// UserStore is the subset of the document store the quota engine needs.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*store.User, error)
	UpdateUser(ctx context.Context, userID int64, fields store.Fields) error
	DeleteUserFields(ctx context.Context, userID int64, fields ...string) error
}

// Sealer encrypts personal API keys at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Resolver decides whether a user is premium. The persisted document is the
// source of truth; results are cached in-process for a bounded time and
// invalidated on every tier change made through the Resolver.
type Resolver struct {
	store  UserStore
	sealer Sealer
	cache  *expirable.LRU[int64, bool]
}

func NewResolver(s UserStore, sealer Sealer, size int, ttl time.Duration) *Resolver {
	return &Resolver{
		store:  s,
		sealer: sealer,
		cache:  expirable.NewLRU[int64, bool](size, nil, ttl),
	}
}

// IsPremium reports whether the user has the premium flag or a personal API key.
// Store failures resolve to false and are not cached.
func (r *Resolver) IsPremium(ctx context.Context, userID int64) bool {
	premium, err := r.Lookup(ctx, userID)
	if err != nil {
		slog.Warn("quota: tier lookup failed, treating as free", "user_id", userID, "error", err)
		return false
	}
	return premium
}

// Lookup is IsPremium that reports store failures instead of resolving them to free.
func (r *Resolver) Lookup(ctx context.Context, userID int64) (bool, error) {
	if premium, ok := r.cache.Get(userID); ok {
		return premium, nil
	}

	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("looking up tier: %w", err)
	}

	premium := u != nil && (u.IsPremium || u.APIKey != "")
	r.cache.Add(userID, premium)
	return premium, nil
}

// Activate stores the user's personal key and promotes them to premium.
func (r *Resolver) Activate(ctx context.Context, userID int64, apiKey string) error {
	sealed, err := r.sealer.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting api key: %w", err)
	}

	r.cache.Remove(userID)
	err = r.store.UpdateUser(ctx, userID, store.Fields{
		store.FieldIsPremium: true,
		store.FieldAPIKey:    sealed,
	})
	if err != nil {
		return fmt.Errorf("activating premium: %w", err)
	}

	r.cache.Add(userID, true)
	slog.Info("quota: personal key activated", "user_id", userID)
	return nil
}

// Deactivate removes the personal key and demotes the user to free.
// The request count is left as is.
func (r *Resolver) Deactivate(ctx context.Context, userID int64) error {
	r.cache.Remove(userID)

	if err := r.store.UpdateUser(ctx, userID, store.Fields{store.FieldIsPremium: false}); err != nil {
		return fmt.Errorf("deactivating premium: %w", err)
	}
	if err := r.store.DeleteUserFields(ctx, userID, store.FieldAPIKey); err != nil {
		return fmt.Errorf("removing api key: %w", err)
	}

	r.cache.Remove(userID)
	slog.Info("quota: personal key deactivated", "user_id", userID)
	return nil
}

// PersonalKey returns the user's decrypted API key, or "" if none is stored.
func (r *Resolver) PersonalKey(ctx context.Context, userID int64) (string, error) {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("getting user: %w", err)
	}
	if u == nil || u.APIKey == "" {
		return "", nil
	}

	key, err := r.sealer.Decrypt(u.APIKey)
	if err != nil {
		return "", fmt.Errorf("decrypting api key: %w", err)
	}
	return key, nil
}
