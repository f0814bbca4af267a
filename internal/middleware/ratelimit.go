package middleware

import (
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/config"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/ratelimit"
)

// KeyFunc names the bucket a request is counted against.
type KeyFunc func(c echo.Context) string

// RateLimit counts every request against lim under the key produced by
// keyFn.  Limiter failures let the request through.
func RateLimit(cfg config.RateLimitConfig, lim ratelimit.Limiter, keyFn KeyFunc, log *logger.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || lim == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = logger.Discard()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFn(c)
			d, err := lim.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn("ratelimit", "limiter error for key=%s: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				log.LogSecurity("rate_limited", key, c.Request().Method+" "+c.Path())
				return apperr.New(apperr.RateLimited, "rate limit exceeded, retry in %d seconds", secs)
			}
			return next(c)
		}
	}
}

// APIRateKey builds keys for the API-wide limiter from the configured
// strategy.  The limiter adds its own prefix.
func APIRateKey(cfg config.RateLimitConfig) KeyFunc {
	strategy := strings.ToLower(cfg.KeyStrategy)
	return func(c echo.Context) string {
		ip := c.RealIP()
		if ip == "" {
			ip = "unknown"
		}
		uid := userID(c)
		route := c.Request().Method + " " + c.Path()

		var parts []string
		switch strategy {
		case "ip":
			parts = []string{"ip", ip}
		case "user":
			parts = []string{"user", uid}
		case "route":
			parts = []string{"route", route}
		case "ip_user":
			parts = []string{"ip", ip, "user", uid}
		case "ip_route":
			parts = []string{"ip", ip, "route", route}
		case "user_route":
			parts = []string{"user", uid, "route", route}
		default:
			parts = []string{"ip", ip, "user", uid, "route", route}
		}
		return strings.Join(parts, ":")
	}
}

// LoginRateKey counts login attempts per client address.
func LoginRateKey(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "login:" + ip
}
