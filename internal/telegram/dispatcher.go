package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// UpdateHandler processes a single update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Dispatcher runs each update in its own goroutine, bounded by a worker limit.
// Updates from the same user are not serialized.
type Dispatcher struct {
	handler UpdateHandler
	group   *errgroup.Group
	ctx     context.Context
}

// NewDispatcher creates a dispatcher whose handlers run under ctx.
func NewDispatcher(ctx context.Context, handler UpdateHandler, workers int) *Dispatcher {
	g := &errgroup.Group{}
	g.SetLimit(workers)
	return &Dispatcher{handler: handler, group: g, ctx: ctx}
}

// Dispatch schedules update for processing. It blocks while all workers are busy.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) {
	d.group.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("telegram: panic while handling update", "update_id", update.UpdateID, "panic", r)
			}
		}()
		d.handler.HandleUpdate(d.ctx, update)
		return nil
	})
}

// Wait blocks until every dispatched update has been handled.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}
