package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Telegram webhook, mounted only when both are set.
	Webhook        http.HandlerFunc
	WebhookPattern string

	// Admin API
	GetUserQuota   http.HandlerFunc
	AdminAuth      func(http.Handler) http.Handler
	AdminRateLimit func(http.Handler) http.Handler
}

// HealthChecker reports whether an optional dependency is usable.
type HealthChecker interface {
	Healthy() bool
}

// Dependencies are probed by /health/ready. NATS may be nil.
type Dependencies struct {
	Redis redis.Cmdable
	NATS  HealthChecker
}

// NewRouter wires the HTTP surface. Middleware is passed in as plain
// functions so this package stays free of the packages it serves.
func NewRouter(deps Dependencies, middleware []func(http.Handler) http.Handler, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	for _, m := range middleware {
		r.Use(m)
	}

	// Liveness probe, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status": "healthy",
			"redis":  "healthy",
			"nats":   "healthy",
		}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		// Usage events are optional; a broken NATS link degrades but does not fail readiness.
		if deps.NATS == nil {
			health["nats"] = "not configured"
		} else if !deps.NATS.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	if h.Webhook != nil && h.WebhookPattern != "" {
		r.Post(h.WebhookPattern, h.Webhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if h.AdminRateLimit != nil {
			r.Use(h.AdminRateLimit)
		}
		r.Use(h.AdminAuth)

		r.Get("/users/{userID}/quota", h.GetUserQuota)
	})

	return r
}
