package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// isSubscribed reports whether the user belongs to the configured channel.
// With no channel configured everyone passes; lookup failures count as not subscribed.
func (h *Handler) isSubscribed(ctx context.Context, userID int64) bool {
	if h.channel == "" {
		return true
	}
	status, err := h.Bot.MemberStatus(ctx, h.channel, userID)
	if err != nil {
		slog.Warn("telegram: subscription check failed", "user_id", userID, "channel", h.channel, "error", err)
		return false
	}
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

func (h *Handler) sendSubscriptionPrompt(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, msgSubscribe(h.channelLink))
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(btnCheckSubscribed, callbackCheckSubscription)),
	}
	if h.channelLink != "" {
		rows = append([][]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btnJoinChannel, h.channelLink)),
		}, rows...)
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)

	if err := h.Bot.Send(ctx, msg); err != nil {
		slog.Warn("telegram: sending subscription prompt", "chat_id", chatID, "error", err)
	}
}

// handleSubscriptionRecheck runs when the user presses "I subscribed".
func (h *Handler) handleSubscriptionRecheck(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if !h.isSubscribed(ctx, cb.From.ID) {
		h.sendSubscriptionPrompt(ctx, cb.Message.Chat.ID)
		return
	}
	h.deleteMessage(ctx, cb.Message)
	h.sendWelcome(ctx, cb.Message.Chat.ID, cb.From.ID)
}

func (h *Handler) deleteMessage(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.Bot.Request(ctx, tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		slog.Debug("telegram: deleting message", "chat_id", msg.Chat.ID, "error", err)
	}
}
