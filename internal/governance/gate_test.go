package governance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamhamid/grammarbot/internal/auth"
	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/store"
)

var testPolicies = quota.Policies{
	Free:    quota.Policy{CharLimit: 120, RequestLimit: 3, ResetHours: 20},
	Premium: quota.Policy{CharLimit: 1000, RequestLimit: 50, ResetHours: 20},
}

type stubTiers map[int64]bool

func (s stubTiers) IsPremium(_ context.Context, userID int64) bool {
	return s[userID]
}

type countingLedger struct {
	result   quota.CheckResult
	checks   int
	consumes int
}

func (l *countingLedger) Check(context.Context, int64) quota.CheckResult {
	l.checks++
	return l.result
}

func (l *countingLedger) Consume(context.Context, int64) error {
	l.consumes++
	return nil
}

func TestAuthorize_OverCharLimitSkipsLedger(t *testing.T) {
	ledger := &countingLedger{result: quota.CheckResult{Allowed: true, CharLimit: 120}}
	gate := NewGate(stubTiers{}, testPolicies, ledger)

	d := gate.Authorize(context.Background(), 1, strings.Repeat("a", 121))
	assert.Equal(t, Decision{Kind: OverCharLimit, CharLimit: 120}, d)
	assert.Zero(t, ledger.checks)
}

func TestAuthorize_CountsCharactersNotBytes(t *testing.T) {
	ledger := &countingLedger{result: quota.CheckResult{Allowed: true, CharLimit: 120}}
	gate := NewGate(stubTiers{}, testPolicies, ledger)

	arabic := strings.Repeat("ب", 120)
	require.Greater(t, len(arabic), 120)

	d := gate.Authorize(context.Background(), 1, arabic)
	assert.Equal(t, Allowed, d.Kind)

	d = gate.Authorize(context.Background(), 1, arabic+"ت")
	assert.Equal(t, OverCharLimit, d.Kind)
}

func TestAuthorize_PremiumCharLimit(t *testing.T) {
	ledger := &countingLedger{result: quota.CheckResult{Allowed: true, CharLimit: 1000}}
	gate := NewGate(stubTiers{7: true}, testPolicies, ledger)

	d := gate.Authorize(context.Background(), 7, strings.Repeat("a", 500))
	assert.Equal(t, Decision{Kind: Allowed, CharLimit: 1000}, d)

	d = gate.Authorize(context.Background(), 7, strings.Repeat("a", 1001))
	assert.Equal(t, Decision{Kind: OverCharLimit, CharLimit: 1000}, d)
}

func TestAuthorize_OverRequestLimit(t *testing.T) {
	ledger := &countingLedger{result: quota.CheckResult{Allowed: false, TimeLeft: 3 * time.Hour, CharLimit: 120}}
	gate := NewGate(stubTiers{}, testPolicies, ledger)

	d := gate.Authorize(context.Background(), 1, "مرحبا")
	assert.Equal(t, Decision{Kind: OverRequestLimit, CharLimit: 120, TimeLeft: 3 * time.Hour}, d)
	assert.Equal(t, 1, ledger.checks)
}

func TestGate_ForwardsConsumeAndTier(t *testing.T) {
	ledger := &countingLedger{}
	gate := NewGate(stubTiers{2: true}, testPolicies, ledger)

	require.NoError(t, gate.Consume(context.Background(), 1))
	assert.Equal(t, 1, ledger.consumes)
	assert.True(t, gate.IsPremium(context.Background(), 2))
	assert.False(t, gate.IsPremium(context.Background(), 1))
}

func setupRealGate(t *testing.T) (*Gate, *miniredis.Miniredis, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	enc, err := auth.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	s := store.NewRedisStore(client, "test")
	resolver := quota.NewResolver(s, enc, 100, time.Minute)
	ledger := quota.NewLedger(s, resolver, testPolicies, clock.NewFake(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	return NewGate(resolver, testPolicies, ledger), mr, s
}

func TestAuthorize_OverCharLimitDoesNotTouchRecord(t *testing.T) {
	gate, mr, _ := setupRealGate(t)

	d := gate.Authorize(context.Background(), 1, strings.Repeat("x", 121))
	assert.Equal(t, OverCharLimit, d.Kind)
	assert.False(t, mr.Exists("test_users:1"))
}

func TestAuthorize_EndToEnd(t *testing.T) {
	gate, _, _ := setupRealGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d := gate.Authorize(ctx, 1, "نص قصير")
		require.Equal(t, Allowed, d.Kind, "request %d", i+1)
		require.NoError(t, gate.Consume(ctx, 1))
	}

	d := gate.Authorize(ctx, 1, "نص قصير")
	assert.Equal(t, OverRequestLimit, d.Kind)
	assert.Equal(t, 20*time.Hour, d.TimeLeft)
}

func TestAuthorize_StoreDownFailsOpen(t *testing.T) {
	gate, mr, _ := setupRealGate(t)
	mr.Close()

	d := gate.Authorize(context.Background(), 1, "نص")
	assert.Equal(t, Decision{Kind: Allowed, CharLimit: 120}, d)
}
