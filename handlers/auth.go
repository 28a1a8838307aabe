package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/middleware/sessionguard"
	"github.com/harborside/authcore/services/authn"
	"github.com/harborside/authcore/services/logging"
	"github.com/harborside/authcore/services/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	RefreshCookieName = "refresh_token"

	// RefreshCookiePath scopes the cookie to the refresh endpoint so the
	// secret never rides along on other requests.
	RefreshCookiePath = "/auth/refresh"
)

type AuthHandler struct {
	config *config.Config
	auth   *authn.Service
	logger *logging.Service
}

func NewAuthHandler(cfg *config.Config, auth *authn.Service, logger *logging.Service) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		auth:   auth,
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Platform string `json:"platform"`
	DeviceID string `json:"device_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	Platform     string `json:"platform"`
}

type userPayload struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	User             userPayload      `json:"user"`
	SessionID        string           `json:"session_id"`
	AccessToken      string           `json:"access_token"`
	TokenType        string           `json:"token_type"`
	ExpiresIn        int              `json:"expires_in"`
	RefreshToken     string           `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
	Platform         session.Platform `json:"platform"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, authn.NewError(authn.CodeBadRequest, "invalid request body"))
	}

	pair, err := h.auth.Login(authn.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		Platform:  h.platform(c, req.Platform),
		DeviceID:  req.DeviceID,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, h.tokenResponse(c, pair))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	// The body is optional for web clients, whose secret arrives in the
	// cookie, so bind failures are not fatal here.
	var req refreshRequest
	_ = c.Bind(&req)

	// Web clients carry the secret in the scoped cookie; mobile clients
	// send it in the body. The cookie wins when both are present.
	secret := req.RefreshToken
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		secret = cookie.Value
	}
	if secret == "" {
		return writeError(c, authn.NewError(authn.CodeBadRequest, "refresh token required"))
	}

	pair, err := h.auth.Refresh(authn.RefreshInput{
		RefreshSecret: secret,
		Platform:      h.platform(c, req.Platform),
		IP:            c.RealIP(),
		UserAgent:     c.Request().UserAgent(),
	})
	if err != nil {
		var authErr *authn.Error
		if errors.As(err, &authErr) && authErr.Code == authn.CodeConflict {
			h.logger.Warn("refresh conflict, clearing web refresh cookie",
				zap.String("ip", c.RealIP()))
			h.clearRefreshCookie(c)
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, h.tokenResponse(c, pair))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(sessionguard.GetSessionID(c)); err != nil {
		return writeError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	if err := h.auth.LogoutAll(sessionguard.GetUserID(c)); err != nil {
		return writeError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	claims := sessionguard.GetClaims(c)
	if claims == nil {
		return writeError(c, authn.ErrInvalidCredentials)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user": userPayload{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		},
		"session_id": claims.SessionID,
		"platform":   claims.Platform(),
	})
}

func (h *AuthHandler) ListSessions(c echo.Context) error {
	infos, err := h.auth.ListSessions(sessionguard.GetUserID(c), sessionguard.GetSessionID(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": infos})
}

func (h *AuthHandler) RevokeSession(c echo.Context) error {
	if err := h.auth.RevokeSession(c.Param("id"), sessionguard.GetUserID(c)); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// platform resolves the client platform from the declared header, falling
// back to the request body.
func (h *AuthHandler) platform(c echo.Context, bodyValue string) string {
	if header := c.Request().Header.Get(h.config.Guard.PlatformHeader); header != "" {
		return header
	}
	return bodyValue
}

func (h *AuthHandler) tokenResponse(c echo.Context, pair *authn.TokenPair) tokenResponse {
	resp := tokenResponse{
		User: userPayload{
			ID:    pair.User.ID,
			Email: pair.User.Email,
			Role:  pair.User.Role,
		},
		SessionID:        pair.SessionID,
		AccessToken:      pair.AccessToken,
		TokenType:        "Bearer",
		ExpiresIn:        pair.AccessTokenExpiresIn,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Platform:         pair.Platform,
	}

	if pair.Platform == session.PlatformWeb {
		h.setRefreshCookie(c, pair.RefreshSecret, pair.RefreshExpiresAt)
	} else {
		resp.RefreshToken = pair.RefreshSecret
	}

	return resp
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, secret string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    secret,
		Path:     RefreshCookiePath,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.config.App.URL, "https://"),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   strings.HasPrefix(h.config.App.URL, "https://"),
		SameSite: http.SameSiteStrictMode,
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is a server fault and stays opaque to the client.
func writeError(c echo.Context, err error) error {
	var authErr *authn.Error
	if errors.As(err, &authErr) {
		return c.JSON(statusForCode(authErr.Code), errorResponse{
			Code:    string(authErr.Code),
			Message: authErr.Message,
		})
	}

	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, errorResponse{
		Code:    "INTERNAL",
		Message: "internal server error",
	})
}

func statusForCode(code authn.Code) int {
	switch code {
	case authn.CodeUnauthorized:
		return http.StatusUnauthorized
	case authn.CodeConflict:
		return http.StatusConflict
	case authn.CodeBadRequest:
		return http.StatusBadRequest
	case authn.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
