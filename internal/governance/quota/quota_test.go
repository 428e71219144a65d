package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bassamhamid/grammarbot/internal/auth"
	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/store"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	testPolicies = Policies{
		Free:    Policy{CharLimit: 120, RequestLimit: 10, ResetHours: 20},
		Premium: Policy{CharLimit: 1000, RequestLimit: 50, ResetHours: 20},
	}
)

type testEnv struct {
	mr       *miniredis.Miniredis
	store    *store.RedisStore
	resolver *Resolver
	ledger   *Ledger
	clock    *clock.Fake
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	enc, err := auth.NewEncryptor(testEncryptionKey)
	require.NoError(t, err)

	s := store.NewRedisStore(client, "test")
	clk := clock.NewFake(t0)
	resolver := NewResolver(s, enc, 100, time.Minute)

	return &testEnv{
		mr:       mr,
		store:    s,
		resolver: resolver,
		ledger:   NewLedger(s, resolver, testPolicies, clk),
		clock:    clk,
	}
}

func (e *testEnv) seed(t *testing.T, userID int64, fields store.Fields) {
	t.Helper()
	require.NoError(t, e.store.UpdateUser(context.Background(), userID, fields))
}

func (e *testEnv) user(t *testing.T, userID int64) *store.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}
