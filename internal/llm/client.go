// Package llm is a small OpenRouter chat-completions client.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bassamhamid/grammarbot/internal/config"
	"github.com/bassamhamid/grammarbot/internal/metrics"
)

const maxErrorBody = 4 << 10

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends prompts to OpenRouter. It is safe for concurrent use.
type Client struct {
	cfg    config.OpenRouterConfig
	client *http.Client
}

func NewClient(cfg config.OpenRouterConfig) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

// Complete sends prompt as a single user message and returns the model's reply.
// An empty apiKey uses the bot's own key.
func (c *Client) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}

	body, err := sjson.SetBytes(nil, "model", c.cfg.Model)
	if err == nil {
		body, err = sjson.SetBytes(body, "messages", []message{{Role: "user", Content: prompt}})
	}
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	start := time.Now()
	raw, err := c.do(ctx, http.MethodPost, "/chat/completions", apiKey, body)
	metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(statusLabel(err)).Inc()
		return "", err
	}

	if msg := gjson.GetBytes(raw, "error.message"); msg.Exists() {
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		return "", &ProviderError{StatusCode: int(gjson.GetBytes(raw, "error.code").Int()), Message: msg.String()}
	}

	content := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
	if content == "" {
		metrics.LLMRequestsTotal.WithLabelValues("empty").Inc()
		return "", ErrEmptyResponse
	}

	metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()
	slog.Debug("llm: completion received",
		"model", gjson.GetBytes(raw, "model").String(),
		"total_tokens", gjson.GetBytes(raw, "usage.total_tokens").Int(),
		"duration", time.Since(start),
	)
	return content, nil
}

// ValidateKey checks a user-supplied key against the provider.
// It returns ErrUnauthorized when the key is rejected.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrUnauthorized
	}
	raw, err := c.do(ctx, http.MethodGet, "/auth/key", apiKey, nil)
	if err != nil {
		return err
	}
	if !gjson.GetBytes(raw, "data").Exists() {
		return ErrUnauthorized
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteTitle != "" {
		req.Header.Set("X-Title", c.cfg.SiteTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w", method, path, ErrTimeout)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := gjson.GetBytes(errBody, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(errBody))
		}
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return raw, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}

func statusLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
