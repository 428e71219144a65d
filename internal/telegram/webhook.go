package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bassamhamid/grammarbot/internal/api"
)

// WebhookPath is the route Telegram posts updates to. The bot token in the
// path keeps the endpoint private.
const WebhookPath = "/telegram/{token}"

// maxUpdateBytes bounds a webhook body. Telegram updates are a few kilobytes.
const maxUpdateBytes = 1 << 20

// WebhookHandler accepts updates pushed by Telegram and hands them to d.
// It answers as soon as the update is queued.
func WebhookHandler(token string, d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(chi.URLParam(r, "token")), []byte(token)) != 1 {
			api.HandleError(w, api.ErrNotFound)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)

		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				api.HandleError(w, api.ErrPayloadTooLarge)
				return
			}
			slog.Warn("telegram: undecodable webhook payload", "error", err)
			api.HandleError(w, api.NewBadRequestError("invalid update"))
			return
		}

		d.Dispatch(update)
		w.WriteHeader(http.StatusOK)
	}
}

// UpdateSource is a long-polling update feed such as *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poll feeds updates from src into d until ctx is cancelled.
func Poll(ctx context.Context, src UpdateSource, d *Dispatcher) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := src.GetUpdatesChan(cfg)

	slog.Info("telegram: polling for updates")
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.Dispatch(update)
		}
	}
}
