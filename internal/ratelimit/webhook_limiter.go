package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seohub/internal/config"
	"go.uber.org/zap"
)

// WebhookLimiter throttles inbound webhook calls per client key. Redis
// outages fail open: dropping vendor events is worse than letting a burst
// through.
type WebhookLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger

	enabled bool
	rate    float64
	burst   int
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *WebhookLimiter {
	enabled := cfg.RateLimit.Enabled && client != nil

	return &WebhookLimiter{
		bucket:  NewTokenBucket(client),
		log:     log.Named("ratelimit"),
		enabled: enabled,
		rate:    cfg.RateLimit.Rate,
		burst:   cfg.RateLimit.Burst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) Allow(ctx context.Context, clientKey string) *Result {
	if !l.Enabled() {
		return &Result{Allowed: true}
	}

	result, err := l.bucket.Allow(ctx, "seohub:webhook:"+clientKey, l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return &Result{Allowed: true}
	}
	return result
}
