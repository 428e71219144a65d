package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/governance"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	inats "github.com/bassamhamid/grammarbot/internal/nats"
	"github.com/bassamhamid/grammarbot/internal/stats"
	"github.com/bassamhamid/grammarbot/internal/store"
)

const callbackCheckSubscription = "check_subscription"

// Bot is the outbound side of Telegram.
type Bot interface {
	Send(ctx context.Context, msg tgbotapi.Chattable) error
	Request(ctx context.Context, req tgbotapi.Chattable) error
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}

// Gate authorizes requests and charges them after success.
type Gate interface {
	Authorize(ctx context.Context, userID int64, text string) governance.Decision
	Consume(ctx context.Context, userID int64) error
	IsPremium(ctx context.Context, userID int64) bool
}

// Tiers manages personal API keys.
type Tiers interface {
	Activate(ctx context.Context, userID int64, apiKey string) error
	Deactivate(ctx context.Context, userID int64) error
	PersonalKey(ctx context.Context, userID int64) (string, error)
}

// QuotaStatus reads a user's quota for display.
type QuotaStatus interface {
	Status(ctx context.Context, userID int64) (*quota.Status, error)
}

// Sessions holds the last text each user submitted.
type Sessions interface {
	SaveText(ctx context.Context, userID int64, text string) error
	Text(ctx context.Context, userID int64) (string, error)
}

// Completer runs prompts against the LLM.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
	ValidateKey(ctx context.Context, apiKey string) error
}

// Users records profile fields on the user document.
type Users interface {
	UpdateUser(ctx context.Context, userID int64, fields store.Fields) error
}

// Stats counts served requests and summarizes usage for admins.
type Stats interface {
	RecordRequest(ctx context.Context) error
	Summary(ctx context.Context) (*stats.Summary, error)
}

// Events publishes usage events. It may be nil.
type Events interface {
	PublishUsage(ctx context.Context, event inats.UsageEvent) error
	PublishDenial(ctx context.Context, event inats.DenialEvent) error
	PublishTierChange(ctx context.Context, event inats.TierEvent) error
}

// Deps groups the collaborators of Handler.
type Deps struct {
	Bot      Bot
	Gate     Gate
	Tiers    Tiers
	Quota    QuotaStatus
	Sessions Sessions
	LLM      Completer
	Users    Users
	Stats    Stats
	Events   Events
	Policies quota.Policies
	Clock    clock.Clock
}

// Options carries the bot's channel and admin settings.
type Options struct {
	ChannelUsername string
	ChannelLink     string
	AdminUsernames  []string
}

// Handler routes Telegram updates to commands, the text flow and menu callbacks.
type Handler struct {
	Deps
	channel     string
	channelLink string
	admins      map[string]struct{}
}

func NewHandler(deps Deps, opts Options) *Handler {
	admins := make(map[string]struct{}, len(opts.AdminUsernames))
	for _, name := range opts.AdminUsernames {
		admins[strings.ToLower(strings.TrimPrefix(name, "@"))] = struct{}{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Handler{
		Deps:        deps,
		channel:     strings.TrimPrefix(opts.ChannelUsername, "@"),
		channelLink: opts.ChannelLink,
		admins:      admins,
	}
}

// HandleUpdate implements UpdateHandler.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		h.touch(ctx, update.Message.From)
		if update.Message.IsCommand() {
			observe("command")
			h.handleCommand(ctx, update.Message)
			return
		}
		if strings.TrimSpace(update.Message.Text) == "" {
			observe("ignored")
			return
		}
		observe("message")
		h.handleText(ctx, update.Message)

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		h.touch(ctx, update.CallbackQuery.From)
		observe("callback")
		h.handleCallback(ctx, update.CallbackQuery)

	default:
		observe("ignored")
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "setapi":
		h.handleSetAPI(ctx, msg)
	case "unsetapi":
		h.handleUnsetAPI(ctx, msg)
	case "stats":
		h.handleStats(ctx, msg)
	default:
		slog.Debug("telegram: ignoring unknown command", "command", msg.Command(), "user_id", msg.From.ID)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if err := h.Bot.Request(ctx, tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("telegram: answering callback", "user_id", cb.From.ID, "error", err)
	}
	if cb.Message == nil {
		return
	}

	if cb.Data == callbackCheckSubscription {
		h.handleSubscriptionRecheck(ctx, cb)
		return
	}
	h.handleAction(ctx, cb)
}

// touch records profile fields and activity. Failures are logged only.
func (h *Handler) touch(ctx context.Context, from *tgbotapi.User) {
	fields := store.Fields{store.FieldLastActive: h.Clock.Now().Unix()}
	if from.UserName != "" {
		fields[store.FieldUsername] = from.UserName
	}
	if err := h.Users.UpdateUser(ctx, from.ID, fields); err != nil {
		slog.Warn("telegram: recording user activity", "user_id", from.ID, "error", err)
	}
}

func (h *Handler) isAdmin(u *tgbotapi.User) bool {
	if u == nil || u.UserName == "" {
		return false
	}
	_, ok := h.admins[strings.ToLower(u.UserName)]
	return ok
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.Bot.Send(ctx, tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Warn("telegram: sending reply", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) edit(ctx context.Context, msg *tgbotapi.Message, text string) {
	if err := h.Bot.Send(ctx, tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)); err != nil {
		slog.Warn("telegram: editing message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (h *Handler) publish(fn func(Events) error) {
	if h.Events == nil {
		return
	}
	if err := fn(h.Events); err != nil {
		slog.Warn("telegram: publishing event", "error", err)
	}
}
