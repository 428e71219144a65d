package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	inats "github.com/bassamhamid/grammarbot/internal/nats"
	"github.com/bassamhamid/grammarbot/internal/store"
)

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if err := h.Users.UpdateUser(ctx, userID, store.Fields{store.FieldStartedChat: true}); err != nil {
		slog.Warn("telegram: marking chat started", "user_id", userID, "error", err)
	}

	if !h.isSubscribed(ctx, userID) {
		h.sendSubscriptionPrompt(ctx, chatID)
		return
	}
	h.sendWelcome(ctx, chatID, userID)
}

func (h *Handler) sendWelcome(ctx context.Context, chatID, userID int64) {
	st, err := h.Quota.Status(ctx, userID)
	if err != nil {
		slog.Warn("telegram: reading quota status", "user_id", userID, "error", err)
		p := h.Policies.PolicyFor(quota.TierFree)
		now := h.Clock.Now()
		st = &quota.Status{
			UserID:       userID,
			Tier:         quota.TierFree,
			RequestLimit: p.RequestLimit,
			Remaining:    p.RequestLimit,
			CharLimit:    p.CharLimit,
			ResetAt:      now.Add(p.Window()),
		}
	}
	h.reply(ctx, chatID, msgWelcome(st, h.Clock.Now()))
}

// handleSetAPI validates a personal OpenRouter key and switches the user to premium.
func (h *Handler) handleSetAPI(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	key := strings.TrimSpace(msg.CommandArguments())
	if key == "" {
		h.reply(ctx, chatID, msgSetAPIUsage)
		return
	}

	// The key should not linger in the chat history.
	h.deleteMessage(ctx, msg)

	if err := h.LLM.ValidateKey(ctx, key); err != nil {
		if isRejectedKey(err) {
			h.reply(ctx, chatID, msgInvalidAPIKey)
			return
		}
		slog.Error("telegram: validating api key", "user_id", userID, "error", err)
		h.reply(ctx, chatID, msgSetAPIError)
		return
	}

	if err := h.Tiers.Activate(ctx, userID, key); err != nil {
		slog.Error("telegram: activating api key", "user_id", userID, "error", err)
		h.reply(ctx, chatID, msgSetAPIError)
		return
	}

	slog.Info("telegram: personal api key activated", "user_id", userID)
	h.publish(func(e Events) error {
		return e.PublishTierChange(ctx, inats.TierEvent{UserID: userID, Tier: string(quota.TierPremium)})
	})
	h.reply(ctx, chatID, msgAPIActivated(h.Policies.PolicyFor(quota.TierPremium)))
}

func (h *Handler) handleUnsetAPI(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	key, err := h.Tiers.PersonalKey(ctx, userID)
	if err != nil {
		slog.Error("telegram: reading api key", "user_id", userID, "error", err)
		h.reply(ctx, chatID, msgUnsetAPIError)
		return
	}
	if key == "" {
		h.reply(ctx, chatID, msgNoAPIActive)
		return
	}

	if err := h.Tiers.Deactivate(ctx, userID); err != nil {
		slog.Error("telegram: deactivating api key", "user_id", userID, "error", err)
		h.reply(ctx, chatID, msgUnsetAPIError)
		return
	}

	slog.Info("telegram: personal api key removed", "user_id", userID)
	h.publish(func(e Events) error {
		return e.PublishTierChange(ctx, inats.TierEvent{UserID: userID, Tier: string(quota.TierFree)})
	})
	h.reply(ctx, chatID, msgAPIDeactivated)
}

// handleStats is admin-only; other users get no reply.
func (h *Handler) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	if !h.isAdmin(msg.From) {
		slog.Debug("telegram: stats refused", "user_id", msg.From.ID)
		return
	}
	summary, err := h.Stats.Summary(ctx)
	if err != nil {
		slog.Error("telegram: building stats summary", "error", err)
		h.reply(ctx, msg.Chat.ID, msgStatsUnavailable)
		return
	}
	h.reply(ctx, msg.Chat.ID, msgStats(summary))
}
