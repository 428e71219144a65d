package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, describe(fe))
		}
	}

	// Premium limits must never be below free limits
	if c.Quota.Premium.CharLimit < c.Quota.Free.CharLimit {
		errs = append(errs, "QUOTA_PREMIUM_CHAR_LIMIT must be >= QUOTA_FREE_CHAR_LIMIT")
	}
	if c.Quota.Premium.RequestLimit < c.Quota.Free.RequestLimit {
		errs = append(errs, "QUOTA_PREMIUM_REQUEST_LIMIT must be >= QUOTA_FREE_REQUEST_LIMIT")
	}
	if c.Quota.Premium.ResetHours < c.Quota.Free.ResetHours {
		errs = append(errs, "QUOTA_PREMIUM_RESET_HOURS must be >= QUOTA_FREE_RESET_HOURS")
	}

	// Encryption key: must be exactly 64 hex chars (32 bytes)
	if c.Encryption.Key == "" {
		errs = append(errs, "ENCRYPTION_KEY is required")
	} else if len(c.Encryption.Key) != 64 {
		errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
	} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
		errs = append(errs, "ENCRYPTION_KEY must be valid hex")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	if c.Admin.APIToken == "" {
		slog.Warn("ADMIN_API_TOKEN is empty, admin API is disabled")
	}
	if c.Bot.ChannelUsername == "" {
		slog.Warn("BOT_CHANNEL_USERNAME is empty, subscription check is disabled")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

// describe renders a field error using the environment variable name of the field.
func describe(fe validator.FieldError) string {
	var parts []string
	for _, p := range strings.Split(fe.Namespace(), ".") {
		if p != "" && p == strings.ToUpper(p) {
			parts = append(parts, p)
		}
	}
	name := strings.Join(parts, "_")
	if name == "" {
		name = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "url":
		return name + " must be a valid URL"
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s, got %v", name, comparison(fe.Tag()), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}
