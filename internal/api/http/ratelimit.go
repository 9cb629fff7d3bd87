package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// RateLimiter bounds request rates per client IP using a fixed window
// counter in Redis. The limiter fails open: if Redis is unreachable the
// request goes through and the failure is logged.
type RateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	cfg    config.RateLimitConfig
}

// NewRateLimiter builds a limiter. A nil client or disabled config yields a
// limiter whose middleware is a pass-through.
func NewRateLimiter(client *redis.Client, logger *zap.Logger, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, logger: logger, cfg: cfg}
}

// Limit returns middleware enforcing the configured window for the named
// operation group (e.g. "auth").
func (r *RateLimiter) Limit(group string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if r == nil || r.client == nil || !r.cfg.Enabled {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", group, c.IP())
		ctx := c.UserContext()

		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			r.logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			if err := r.client.Expire(ctx, key, r.cfg.Window()).Err(); err != nil {
				r.logger.Warn("rate limiter expire failed", zap.Error(err))
			}
		}
		if count > int64(r.cfg.Attempts) {
			retryAfter, err := r.client.TTL(ctx, key).Result()
			if err != nil || retryAfter < 0 {
				retryAfter = r.cfg.Window()
			}
			c.Set("Retry-After", fmt.Sprintf("%d", int(retryAfter/time.Second)))
			return apperrors.NewDomainError("RATE_LIMITED", "too many requests", fiber.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}
