package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Bot        BotConfig
	OpenRouter OpenRouterConfig
	Quota      QuotaConfig
	Encryption EncryptionConfig
	NATS       NATSConfig
	Stats      StatsConfig
	Admin      AdminConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string `env:"SERVER_HOST"`
	Port int    `env:"SERVER_PORT"`
}

type RedisConfig struct {
	Host      string `env:"REDIS_HOST" validate:"required"`
	Port      int    `env:"REDIS_PORT"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" validate:"gte=0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" validate:"required"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type BotConfig struct {
	Token           string        `env:"BOT_TOKEN" validate:"required"`
	WebhookURL      string        `env:"BOT_WEBHOOK_URL" validate:"omitempty,url"`
	ChannelUsername string        `env:"BOT_CHANNEL_USERNAME"`
	ChannelLink     string        `env:"BOT_CHANNEL_LINK" validate:"omitempty,url"`
	AdminUsernames  []string      `env:"BOT_ADMIN_USERNAMES"`
	Workers         int           `env:"BOT_WORKERS" validate:"gt=0"`
	SessionTTL      time.Duration `env:"BOT_SESSION_TTL" validate:"gt=0"`
	SendRate        float64       `env:"BOT_SEND_RATE" validate:"gt=0"`
}

type OpenRouterConfig struct {
	APIKey    string        `env:"OPENROUTER_API_KEY" validate:"required"`
	Model     string        `env:"OPENROUTER_MODEL" validate:"required"`
	BaseURL   string        `env:"OPENROUTER_BASE_URL" validate:"required,url"`
	Timeout   time.Duration `env:"OPENROUTER_TIMEOUT" validate:"gt=0"`
	SiteURL   string        `env:"OPENROUTER_SITE_URL"`
	SiteTitle string        `env:"OPENROUTER_SITE_TITLE"`
}

// TierLimits is the limit triple applied to one tier.
type TierLimits struct {
	CharLimit    int `env:"CHAR_LIMIT" validate:"gt=0"`
	RequestLimit int `env:"REQUEST_LIMIT" validate:"gt=0"`
	ResetHours   int `env:"RESET_HOURS" validate:"gt=0"`
}

type QuotaConfig struct {
	Free          TierLimits    `env:"QUOTA_FREE"`
	Premium       TierLimits    `env:"QUOTA_PREMIUM"`
	TierCacheTTL  time.Duration `env:"QUOTA_TIER_CACHE_TTL" validate:"gt=0"`
	TierCacheSize int           `env:"QUOTA_TIER_CACHE_SIZE" validate:"gt=0"`
}

type EncryptionConfig struct {
	Key string `env:"ENCRYPTION_KEY"`
}

type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

type StatsConfig struct {
	ResetSchedule string `env:"STATS_RESET_SCHEDULE"`
}

type AdminConfig struct {
	APIToken string `env:"ADMIN_API_TOKEN"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" validate:"oneof=text json"`
	File   string `env:"LOG_FILE"`
}

// envKey maps OPENROUTER_MODEL to openrouter.model.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.ParserEnv("", ".", envKey))

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		Redis: RedisConfig{
			Host:      k.String("redis.host"),
			Port:      k.Int("redis.port"),
			Password:  k.String("redis.password"),
			DB:        k.Int("redis.db"),
			KeyPrefix: k.String("redis.key.prefix"),
		},
		Bot: BotConfig{
			Token:           k.String("bot.token"),
			WebhookURL:      k.String("bot.webhook.url"),
			ChannelUsername: strings.TrimPrefix(k.String("bot.channel.username"), "@"),
			ChannelLink:     k.String("bot.channel.link"),
			AdminUsernames:  splitList(k.String("bot.admin.usernames")),
			Workers:         k.Int("bot.workers"),
			SendRate:        k.Float64("bot.send.rate"),
		},
		OpenRouter: OpenRouterConfig{
			APIKey:    k.String("openrouter.api.key"),
			Model:     k.String("openrouter.model"),
			BaseURL:   k.String("openrouter.base.url"),
			SiteURL:   k.String("openrouter.site.url"),
			SiteTitle: k.String("openrouter.site.title"),
		},
		Quota: QuotaConfig{
			Free: TierLimits{
				CharLimit:    k.Int("quota.free.char.limit"),
				RequestLimit: k.Int("quota.free.request.limit"),
				ResetHours:   k.Int("quota.free.reset.hours"),
			},
			Premium: TierLimits{
				CharLimit:    k.Int("quota.premium.char.limit"),
				RequestLimit: k.Int("quota.premium.request.limit"),
				ResetHours:   k.Int("quota.premium.reset.hours"),
			},
			TierCacheSize: k.Int("quota.tier.cache.size"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		Stats: StatsConfig{
			ResetSchedule: k.String("stats.reset.schedule"),
		},
		Admin: AdminConfig{
			APIToken: k.String("admin.api.token"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
			File:   k.String("log.file"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 10000
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "arabic_bot"
	}
	if cfg.Bot.Workers == 0 {
		cfg.Bot.Workers = 32
	}
	if cfg.Bot.SendRate == 0 {
		cfg.Bot.SendRate = 25
	}
	if cfg.OpenRouter.Model == "" {
		cfg.OpenRouter.Model = "meta-llama/llama-4-maverick:free"
	}
	if cfg.OpenRouter.BaseURL == "" {
		cfg.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.OpenRouter.SiteTitle == "" {
		cfg.OpenRouter.SiteTitle = "Arabic Text Bot"
	}
	applyTierDefaults(&cfg.Quota.Free, TierLimits{CharLimit: 120, RequestLimit: 3, ResetHours: 20})
	applyTierDefaults(&cfg.Quota.Premium, TierLimits{CharLimit: 1000, RequestLimit: 50, ResetHours: 20})
	if cfg.Quota.TierCacheSize == 0 {
		cfg.Quota.TierCacheSize = 10000
	}
	if cfg.Stats.ResetSchedule == "" {
		cfg.Stats.ResetSchedule = "0 0 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	cfg.Bot.SessionTTL, err = parseDuration(k, "bot.session.ttl", "30m")
	if err != nil {
		return nil, err
	}
	cfg.OpenRouter.Timeout, err = parseDuration(k, "openrouter.timeout", "60s")
	if err != nil {
		return nil, err
	}
	cfg.Quota.TierCacheTTL, err = parseDuration(k, "quota.tier.cache.ttl", "5m")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyTierDefaults(l *TierLimits, def TierLimits) {
	if l.CharLimit == 0 {
		l.CharLimit = def.CharLimit
	}
	if l.RequestLimit == 0 {
		l.RequestLimit = def.RequestLimit
	}
	if l.ResetHours == 0 {
		l.ResetHours = def.ResetHours
	}
}

func parseDuration(k *koanf.Koanf, key, def string) (time.Duration, error) {
	raw := k.String(key)
	if raw == "" {
		raw = def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "@")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
