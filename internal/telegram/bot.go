// Package telegram adapts Telegram updates to the quota engine and the LLM.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Client paces outbound calls so bursts stay under Telegram's flood limits.
type Client struct {
	api     API
	limiter *rate.Limiter
}

// NewClient allows perSecond outbound calls with an equal burst.
func NewClient(api API, perSecond float64) *Client {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{api: api, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Send delivers a message-producing call such as a new message.
func (c *Client) Send(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("sending %T: %w", msg, err)
	}
	return nil
}

// Request performs a call whose result is not a message, such as answering a callback.
func (c *Client) Request(ctx context.Context, req tgbotapi.Chattable) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for send slot: %w", err)
	}
	if _, err := c.api.Request(req); err != nil {
		return fmt.Errorf("requesting %T: %w", req, err)
	}
	return nil
}

// MemberStatus returns the user's status in the channel, e.g. "member" or "left".
func (c *Client) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for send slot: %w", err)
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: "@" + channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("getting chat member: %w", err)
	}
	return member.Status, nil
}
