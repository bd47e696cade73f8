package middleware

import (
	"strconv"
	"time"

	"github.com/v1mal/open-scene-engine-sub000/internal/models"
	"github.com/v1mal/open-scene-engine-sub000/internal/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimit returns a Fiber middleware enforcing limit requests per window
// under the named bucket. It keys by authenticated user when the auth
// middleware ran first, otherwise by normalized client address. The
// limiter's failure policy applies when Redis is down.
func RateLimit(l *ratelimit.Limiter, name string, limit int, window time.Duration) fiber.Handler {
	bucket := ratelimit.Bucket{Name: name, Limit: limit, Window: window}
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		err := l.AllowBucket(c.UserContext(), bucket, ratelimit.Subject(ActorFrom(c)))
		switch {
		case err == nil:
			return c.Next()
		case models.IsCode(err, models.CodeRateLimited):
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, err)
		default:
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
	}
}
