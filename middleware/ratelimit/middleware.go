package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harborside/authcore/config"
	"github.com/labstack/echo/v4"
)

// Config describes one rate-limited route group. Separate KeyPrefix values
// give login and refresh independent buckets for the same client IP.
type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyPrefix      string
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
}

// Middleware enforces a fixed-window limit per key. With CountFailures only
// 4xx/5xx responses consume the budget, so a legitimate client refreshing
// on schedule is never throttled while a credential stuffer is.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "default"
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = IPKeyGenerator(cfg.KeyPrefix)
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.KeyGenerator(c)

			// Every request is charged up front in one atomic step; modes
			// that only count certain outcomes roll the charge back after
			// the handler runs.
			count, reset := cfg.Store.Increment(key, time.Now().Add(cfg.Period))

			if count > cfg.Rate {
				setHeaders(c, cfg.Rate, 0, reset)
				return cfg.OnLimitReached(c)
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-count, 0), reset)

			err := next(c)

			if cfg.CountMode != config.CountAll {
				status := c.Response().Status
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				}

				var shouldCount bool
				switch cfg.CountMode {
				case config.CountFailures:
					shouldCount = status >= 400
				case config.CountSuccess:
					shouldCount = status < 400
				}

				if !shouldCount {
					cfg.Store.Decrement(key)
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Response().Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

// IPKeyGenerator buckets requests by client IP under the given prefix.
func IPKeyGenerator(prefix string) func(c echo.Context) string {
	return func(c echo.Context) string {
		realIP := c.RealIP()
		if realIP == "" || realIP == "unknown" {
			realIP = "fallback"
		}
		return "rate_limit:" + prefix + ":" + realIP
	}
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
}

func NewStore(rateLimitConfig *config.RateLimitConfig) Store {
	switch rateLimitConfig.Store {
	case "memory":
		fallthrough
	default:
		return NewMemoryStore()
	}
}
