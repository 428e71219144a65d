package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrUnauthorized  = errors.New("api key rejected")
	ErrRateLimited   = errors.New("rate limited")
	ErrTimeout       = errors.New("request timed out")
	ErrEmptyResponse = errors.New("empty completion")
	ErrUnknownAction = errors.New("unknown action")
)

// ProviderError is a non-2xx response from the provider.
type ProviderError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("openrouter error (status %d): %s", e.StatusCode, e.Message)
}

// Is maps auth and throttling statuses onto the package sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
