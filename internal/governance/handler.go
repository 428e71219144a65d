package governance

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bassamhamid/grammarbot/internal/api"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/store"
)

// StatusReader returns a read-only quota view.
type StatusReader interface {
	Status(ctx context.Context, userID int64) (*quota.Status, error)
}

// Handler provides HTTP handlers for the admin quota endpoints.
type Handler struct {
	ledger StatusReader
}

func NewHandler(ledger StatusReader) *Handler {
	return &Handler{ledger: ledger}
}

// GetQuota returns a user's current quota status.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid user id"))
		return
	}

	status, err := h.ledger.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			api.HandleError(w, api.ErrServiceUnavailable)
			return
		}
		slog.Error("governance: getting quota status", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
