package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit is a fixed-window per-IP limiter backed by Redis. Redis being
// down fails open: throttling is protection, not a correctness guarantee.
func RateLimit(client *redis.Client, perMinute int, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			window := time.Now().UTC().Format("200601021504")
			key := "ratelimit:" + c.RealIP() + ":" + window

			n, err := client.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable")
				return next(c)
			}
			if n == 1 {
				client.Expire(ctx, key, 2*time.Minute)
			}
			if n > int64(perMinute) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}
