package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/seohub/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		newRedisClient,
		NewWebhookLimiter,
	),
)

// newRedisClient returns nil when no redis address is configured; the
// limiter treats a nil client as disabled.
func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.RateLimit.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
}
