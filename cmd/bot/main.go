package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bassamhamid/grammarbot/internal/api"
	"github.com/bassamhamid/grammarbot/internal/auth"
	"github.com/bassamhamid/grammarbot/internal/clock"
	"github.com/bassamhamid/grammarbot/internal/config"
	"github.com/bassamhamid/grammarbot/internal/governance"
	"github.com/bassamhamid/grammarbot/internal/governance/quota"
	"github.com/bassamhamid/grammarbot/internal/llm"
	mw "github.com/bassamhamid/grammarbot/internal/middleware"
	inats "github.com/bassamhamid/grammarbot/internal/nats"
	iredis "github.com/bassamhamid/grammarbot/internal/redis"
	"github.com/bassamhamid/grammarbot/internal/server"
	"github.com/bassamhamid/grammarbot/internal/session"
	"github.com/bassamhamid/grammarbot/internal/stats"
	"github.com/bassamhamid/grammarbot/internal/store"
	"github.com/bassamhamid/grammarbot/internal/telegram"
)

const (
	adminRateLimit     = 30
	adminRateWindowSec = 60
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	docs := store.NewRedisStore(redisClient, cfg.Redis.KeyPrefix)
	clk := clock.Real()

	// Quota engine
	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}
	policies := quota.NewPolicies(cfg.Quota)
	tiers := quota.NewResolver(docs, encryptor, cfg.Quota.TierCacheSize, cfg.Quota.TierCacheTTL)
	ledger := quota.NewLedger(docs, tiers, policies, clk)
	gate := governance.NewGate(tiers, policies, ledger)

	// Stats
	statsSvc := stats.NewService(docs, clk)
	scheduler := stats.NewScheduler(statsSvc, cfg.Stats.ResetSchedule)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("starting stats scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// NATS (optional)
	var (
		events     telegram.Events
		natsHealth api.HealthChecker
	)
	if cfg.NATS.URL != "" {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, usage events disabled", "error", err)
		} else {
			defer natsClient.Close()
			events = inats.NewPublisher(natsClient.JetStream())
			natsHealth = natsClient
		}
	}

	// Telegram
	if err := tgbotapi.SetLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug)); err != nil {
		slog.Warn("setting telegram logger", "error", err)
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		slog.Error("connecting to telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram: authorized", "username", botAPI.Self.UserName)

	handler := telegram.NewHandler(telegram.Deps{
		Bot:      telegram.NewClient(botAPI, cfg.Bot.SendRate),
		Gate:     gate,
		Tiers:    tiers,
		Quota:    ledger,
		Sessions: session.NewStore(redisClient, cfg.Redis.KeyPrefix, cfg.Bot.SessionTTL),
		LLM:      llm.NewClient(cfg.OpenRouter),
		Users:    docs,
		Stats:    statsSvc,
		Events:   events,
		Policies: policies,
		Clock:    clk,
	}, telegram.Options{
		ChannelUsername: cfg.Bot.ChannelUsername,
		ChannelLink:     cfg.Bot.ChannelLink,
		AdminUsernames:  cfg.Bot.AdminUsernames,
	})

	// In-flight updates finish after a shutdown signal.
	dispatcher := telegram.NewDispatcher(context.WithoutCancel(ctx), handler, cfg.Bot.Workers)
	defer dispatcher.Wait()

	handlers := api.HandlerSet{
		GetUserQuota:   governance.NewHandler(ledger).GetQuota,
		AdminAuth:      auth.AdminToken(cfg.Admin.APIToken),
		AdminRateLimit: mw.NewRateLimiter(redisClient, "ratelimit:admin:", adminRateLimit, adminRateWindowSec).Middleware,
	}

	if cfg.Bot.WebhookURL != "" {
		hook, err := tgbotapi.NewWebhook(strings.TrimSuffix(cfg.Bot.WebhookURL, "/") + "/telegram/" + cfg.Bot.Token)
		if err != nil {
			slog.Error("building webhook", "error", err)
			os.Exit(1)
		}
		if _, err := botAPI.Request(hook); err != nil {
			slog.Error("registering webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("telegram: webhook registered", "url", cfg.Bot.WebhookURL)
		handlers.Webhook = telegram.WebhookHandler(cfg.Bot.Token, dispatcher)
		handlers.WebhookPattern = telegram.WebhookPath
	} else {
		if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			slog.Warn("removing webhook", "error", err)
		}
		go telegram.Poll(ctx, botAPI, dispatcher)
	}

	router := api.NewRouter(
		api.Dependencies{Redis: redisClient, NATS: natsHealth},
		[]func(http.Handler) http.Handler{mw.RequestID, mw.SecurityHeaders, mw.Logging, mw.Recovery, mw.Metrics},
		handlers,
	)

	srv := server.New(cfg.Server, router)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
