package server

import (
	"crypto/subtle"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates an inbound request id or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestLogger emits one structured log line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// WebhookAuthRequired gates the SEOWorks endpoints behind the shared secret in
// x-api-key. The compare is constant-time and key values are never logged.
func (s *Server) WebhookAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := s.cfg.WebhookAPIKey
		if secret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		provided := c.GetHeader("x-api-key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// WebhookRateLimit throttles per client IP. Disabled limiters pass everything
// through.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		result := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
