package sessionguard

import (
	"net/http"
	"strings"
	"time"

	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/services/logging"
	"github.com/harborside/authcore/services/session"
	"github.com/harborside/authcore/services/tokens"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	UserIDKey    = "_guard_user_id"
	ClaimsKey    = "_guard_claims"
	SessionIDKey = "_guard_session_id"
)

// Guard authenticates requests with a bearer access token and cross-checks
// the session it is bound to. A signature-valid token is not enough: the
// session must still exist, be unrevoked, be inside its refresh window, and
// the token must not predate the session's last rotation.
type Guard struct {
	config   *config.Config
	tokens   *tokens.Service
	sessions *session.Store
	logger   *logging.Service
}

func NewGuard(cfg *config.Config, tokenSvc *tokens.Service, sessions *session.Store, logger *logging.Service) *Guard {
	return &Guard{
		config:   cfg,
		tokens:   tokenSvc,
		sessions: sessions,
		logger:   logger,
	}
}

// Require is the route middleware. Every rejection past the header format
// checks uses the same generic message so callers cannot probe which check
// failed.
func (g *Guard) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access token required")
			}

			claims, err := g.tokens.Validate(tokenString)
			if err != nil {
				return unauthorized()
			}

			if err := g.checkPlatform(c, claims); err != nil {
				return err
			}

			if err := g.checkSession(claims); err != nil {
				return err
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(ClaimsKey, claims)
			c.Set(SessionIDKey, claims.SessionID)

			return next(c)
		}
	}
}

// checkPlatform compares the token audience against the declared client
// platform. The header is optional; when present it must agree with what
// the token was minted for.
func (g *Guard) checkPlatform(c echo.Context, claims *tokens.Claims) error {
	header := c.Request().Header.Get(g.config.Guard.PlatformHeader)
	if header == "" {
		return nil
	}

	declared, err := session.ParsePlatform(header)
	if err != nil {
		return unauthorized()
	}

	if declared.Audience() != claims.Platform() {
		g.logger.Warn("guard rejected token - platform mismatch",
			zap.String("session_id", claims.SessionID),
			zap.String("token_audience", claims.Platform()),
			zap.String("declared_platform", string(declared)))
		return unauthorized()
	}

	return nil
}

func (g *Guard) checkSession(claims *tokens.Claims) error {
	sess, err := g.sessions.FindByID(claims.SessionID)
	if err != nil {
		return unauthorized()
	}

	active, ok := sess.State().(session.Active)
	if !ok {
		g.logger.Warn("guard rejected token - session revoked",
			zap.String("session_id", sess.ID),
			zap.Uint("user_id", sess.UserID))
		return unauthorized()
	}

	if active.ExpiresAt.Before(time.Now()) {
		return unauthorized()
	}

	// A token minted before the session's last rotation is stale even if
	// its own expiry has not passed. The skew absorbs clock drift between
	// the mint and the rotation write.
	if sess.LastRotatedAt != nil && claims.IssuedAt != nil {
		if claims.IssuedAt.Time.Add(g.config.Guard.RotationSkew).Before(*sess.LastRotatedAt) {
			g.logger.Warn("guard rejected token - issued before last rotation",
				zap.String("session_id", sess.ID),
				zap.Time("issued_at", claims.IssuedAt.Time),
				zap.Time("last_rotated_at", *sess.LastRotatedAt))
			return unauthorized()
		}
	}

	return nil
}

func unauthorized() error {
	return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
}

func GetUserID(c echo.Context) uint {
	if userID, ok := c.Get(UserIDKey).(uint); ok {
		return userID
	}
	return 0
}

func GetClaims(c echo.Context) *tokens.Claims {
	if claims, ok := c.Get(ClaimsKey).(*tokens.Claims); ok {
		return claims
	}
	return nil
}

func GetSessionID(c echo.Context) string {
	if id, ok := c.Get(SessionIDKey).(string); ok {
		return id
	}
	return ""
}
