package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bassamhamid/grammarbot/internal/auth"
	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/governance"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	inats "github.com/bassamhamid/grammarbot/internal/nats"
	"github.com/bassamhamid/grammarbot/internal/session"
	"github.com/bassamhamid/grammarbot/internal/stats"
	"github.com/bassamhamid/grammarbot/internal/store"
)

const (
	testEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testChannel       = "grammar_channel"
	userID            = int64(42)
)

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	testPolicies = quota.Policies{
		Free:    quota.Policy{CharLimit: 20, RequestLimit: 2, ResetHours: 20},
		Premium: quota.Policy{CharLimit: 100, RequestLimit: 5, ResetHours: 20},
	}
)

// fakeBot records outbound calls.
type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	statuses map[int64]string
	err      error
}

func (b *fakeBot) Send(_ context.Context, msg tgbotapi.Chattable) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, msg)
	return nil
}

func (b *fakeBot) Request(_ context.Context, req tgbotapi.Chattable) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return nil
}

func (b *fakeBot) MemberStatus(_ context.Context, _ string, userID int64) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if s, ok := b.statuses[userID]; ok {
		return s, nil
	}
	return "left", nil
}

// texts returns the text of every message sent or edited, in order.
func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (b *fakeBot) last() string {
	t := b.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

type fakeLLM struct {
	mu          sync.Mutex
	result      string
	err         error
	validateErr error
	keys        []string
	prompts     []string
}

func (f *fakeLLM) Complete(_ context.Context, apiKey, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, apiKey)
	f.prompts = append(f.prompts, prompt)
	return f.result, f.err
}

func (f *fakeLLM) ValidateKey(context.Context, string) error {
	return f.validateErr
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeEvents struct {
	mu      sync.Mutex
	usage   []inats.UsageEvent
	denials []inats.DenialEvent
	tiers   []inats.TierEvent
}

func (e *fakeEvents) PublishUsage(_ context.Context, ev inats.UsageEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.usage = append(e.usage, ev)
	return nil
}

func (e *fakeEvents) PublishDenial(_ context.Context, ev inats.DenialEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.denials = append(e.denials, ev)
	return nil
}

func (e *fakeEvents) PublishTierChange(_ context.Context, ev inats.TierEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tiers = append(e.tiers, ev)
	return nil
}

type testEnv struct {
	handler  *Handler
	bot      *fakeBot
	llm      *fakeLLM
	events   *fakeEvents
	store    *store.RedisStore
	sessions *session.Store
	resolver *quota.Resolver
	clock    *clock.Fake
}

func setup(t *testing.T, admins ...string) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	enc, err := auth.NewEncryptor(testEncryptionKey)
	require.NoError(t, err)

	clk := clock.NewFake(t0)
	s := store.NewRedisStore(client, "test")
	resolver := quota.NewResolver(s, enc, 100, time.Minute)
	ledger := quota.NewLedger(s, resolver, testPolicies, clk)
	sessions := session.NewStore(client, "test", time.Hour)

	env := &testEnv{
		bot:      &fakeBot{statuses: map[int64]string{userID: "member"}},
		llm:      &fakeLLM{result: "نص مصحح"},
		events:   &fakeEvents{},
		store:    s,
		sessions: sessions,
		resolver: resolver,
		clock:    clk,
	}
	env.handler = NewHandler(Deps{
		Bot:      env.bot,
		Gate:     governance.NewGate(resolver, testPolicies, ledger),
		Tiers:    resolver,
		Quota:    ledger,
		Sessions: sessions,
		LLM:      env.llm,
		Users:    s,
		Stats:    stats.NewService(s, clk),
		Events:   env.events,
		Policies: testPolicies,
		Clock:    clk,
	}, Options{
		ChannelUsername: "@" + testChannel,
		ChannelLink:     "https://t.me/" + testChannel,
		AdminUsernames:  admins,
	})
	return env
}

func (e *testEnv) user(t *testing.T) *store.User {
	t.Helper()
	u, err := e.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func from(username string) *tgbotapi.User {
	return &tgbotapi.User{ID: userID, UserName: username}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      from("reader"),
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}}
}

func commandUpdate(username, command, args string) tgbotapi.Update {
	text := "/" + command
	if args != "" {
		text += " " + args
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      from(username),
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
	}}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: from("reader"),
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 3,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}}
}
