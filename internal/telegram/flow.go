package telegram

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bassamhamid/grammarbot/internal/governance"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/llm"
	"github.com/bassamhamid/grammarbot/internal/metrics"
	inats "github.com/bassamhamid/grammarbot/internal/nats"
)

func observe(kind string) {
	metrics.UpdatesHandledTotal.WithLabelValues(kind).Inc()
}

func tierName(premium bool) string {
	if premium {
		return string(quota.TierPremium)
	}
	return string(quota.TierFree)
}

// handleText authorizes a submitted text and offers the action menu.
func (h *Handler) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if !h.isSubscribed(ctx, userID) {
		h.sendSubscriptionPrompt(ctx, chatID)
		return
	}

	d := h.Gate.Authorize(ctx, userID, msg.Text)
	if d.Kind != governance.Allowed {
		h.deny(ctx, userID, d)
		h.reply(ctx, chatID, denialText(d, msg.Text))
		return
	}

	if err := h.Sessions.SaveText(ctx, userID, msg.Text); err != nil {
		slog.Error("telegram: saving session text", "user_id", userID, "error", err)
		h.reply(ctx, chatID, msgInternalError)
		return
	}

	menu := tgbotapi.NewMessage(chatID, msgChooseService)
	menu.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnCorrect, string(llm.ActionCorrect)),
		tgbotapi.NewInlineKeyboardButtonData(btnRewrite, string(llm.ActionRewrite)),
	))
	if err := h.Bot.Send(ctx, menu); err != nil {
		slog.Warn("telegram: sending menu", "chat_id", chatID, "error", err)
	}
}

// handleAction runs the chosen action on the stored text. The request is
// charged only after the LLM call succeeds.
func (h *Handler) handleAction(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID, msg := cb.From.ID, cb.Message

	if !h.isSubscribed(ctx, userID) {
		h.sendSubscriptionPrompt(ctx, msg.Chat.ID)
		h.deleteMessage(ctx, msg)
		return
	}

	action, err := llm.ParseAction(cb.Data)
	if err != nil {
		h.edit(ctx, msg, msgUnknownAction)
		return
	}

	text, err := h.Sessions.Text(ctx, userID)
	if err != nil {
		slog.Warn("telegram: reading session text", "user_id", userID, "error", err)
	}
	if text == "" {
		h.edit(ctx, msg, msgTextNotFound)
		return
	}

	// Re-check: the menu may have been pressed long after the text was accepted.
	d := h.Gate.Authorize(ctx, userID, text)
	if d.Kind != governance.Allowed {
		h.deny(ctx, userID, d)
		if d.Kind == governance.OverRequestLimit {
			h.edit(ctx, msg, msgRequestsUsedUp)
		} else {
			h.edit(ctx, msg, denialText(d, text))
		}
		return
	}

	h.edit(ctx, msg, msgProcessing)

	premium := h.Gate.IsPremium(ctx, userID)
	apiKey := ""
	if premium {
		if apiKey, err = h.Tiers.PersonalKey(ctx, userID); err != nil {
			slog.Warn("telegram: personal key unavailable, using bot key", "user_id", userID, "error", err)
			apiKey = ""
		}
	}

	result, err := h.LLM.Complete(ctx, apiKey, llm.Prompt(action, text))
	if err != nil {
		slog.Error("telegram: completion failed", "user_id", userID, "action", action, "error", err)
		h.edit(ctx, msg, msgProcessingError)
		return
	}

	if err := h.Gate.Consume(ctx, userID); err != nil {
		slog.Error("telegram: consuming quota", "user_id", userID, "error", err)
	}
	if err := h.Stats.RecordRequest(ctx); err != nil {
		slog.Warn("telegram: recording request stats", "error", err)
	}

	st, err := h.Quota.Status(ctx, userID)
	if err != nil {
		slog.Warn("telegram: reading quota status", "user_id", userID, "error", err)
		st = nil
	}

	remaining := 0
	if st != nil {
		remaining = st.Remaining
	}
	h.publish(func(e Events) error {
		return e.PublishUsage(ctx, inats.UsageEvent{
			UserID:    userID,
			Action:    string(action),
			Tier:      tierName(premium),
			Chars:     utf8.RuneCountInString(text),
			Remaining: remaining,
		})
	})

	h.edit(ctx, msg, msgResult(result, st))
	slog.Info("telegram: request served", "user_id", userID, "action", action, "tier", tierName(premium))
}

func (h *Handler) deny(ctx context.Context, userID int64, d governance.Decision) {
	h.publish(func(e Events) error {
		return e.PublishDenial(ctx, inats.DenialEvent{
			UserID: userID,
			Reason: string(d.Kind),
			Tier:   tierName(h.Gate.IsPremium(ctx, userID)),
		})
	})
}

func denialText(d governance.Decision, text string) string {
	if d.Kind == governance.OverCharLimit {
		return msgOverCharLimit(d.CharLimit, utf8.RuneCountInString(text))
	}
	return msgOverRequestLimit(d.TimeLeft)
}

// isRejectedKey reports whether err means the provider refused the key itself.
func isRejectedKey(err error) bool {
	return errors.Is(err, llm.ErrUnauthorized)
}
