package handlers

import (
	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/middleware/ratelimit"
	"github.com/harborside/authcore/middleware/sessionguard"
	"github.com/harborside/authcore/server"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the auth API. Login and refresh sit behind
// failure-counting rate limits; everything past them requires a guarded
// access token.
func RegisterRoutes(srv *server.Server, h *AuthHandler, guard *sessionguard.Guard, cfg *config.Config, store ratelimit.Store) {
	g := srv.Group("/auth")

	var limits []echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		limits = append(limits, ratelimit.Middleware(&ratelimit.Config{
			Store:     store,
			Rate:      cfg.RateLimit.LoginRate,
			Period:    cfg.RateLimit.LoginPeriod,
			CountMode: config.CountFailures,
			KeyPrefix: "auth",
		}))
	}

	g.POST("/login", h.Login, limits...)
	g.POST("/refresh", h.Refresh, limits...)

	protected := g.Group("", guard.Require())
	protected.POST("/logout", h.Logout)
	protected.POST("/logout-all", h.LogoutAll)
	protected.GET("/me", h.Me)
	protected.GET("/sessions", h.ListSessions)
	protected.DELETE("/sessions/:id", h.RevokeSession)
}
