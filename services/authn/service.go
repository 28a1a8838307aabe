package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/services/credentials"
	"github.com/harborside/authcore/services/logging"
	"github.com/harborside/authcore/services/session"
	"github.com/harborside/authcore/services/tokens"
	"github.com/harborside/authcore/services/user"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// Service orchestrates login, refresh rotation with reuse detection, and
// session revocation. It holds no state of its own; all shared mutable
// state lives in the session store, whose conditional updates carry the
// concurrency guarantees.
type Service struct {
	config      *config.Config
	users       *user.Store
	sessions    *session.Store
	tokens      *tokens.Service
	credentials *credentials.Service
	logger      *logging.Service
}

func NewService(cfg *config.Config, users *user.Store, sessions *session.Store, tokenSvc *tokens.Service, credSvc *credentials.Service, logger *logging.Service) *Service {
	return &Service{
		config:      cfg,
		users:       users,
		sessions:    sessions,
		tokens:      tokenSvc,
		credentials: credSvc,
		logger:      logger,
	}
}

type LoginInput struct {
	Email     string
	Password  string
	Platform  string
	DeviceID  string
	IP        string
	UserAgent string
}

type TokenPair struct {
	User                 *user.User
	SessionID            string
	AccessToken          string
	AccessTokenExpiresIn int
	RefreshSecret        string
	RefreshExpiresAt     time.Time
	Platform             session.Platform
}

func (s *Service) Login(input LoginInput) (*TokenPair, error) {
	platform, err := session.ParsePlatform(input.Platform)
	if err != nil {
		return nil, ErrInvalidPlatform
	}

	if platform == session.PlatformMobile && strings.TrimSpace(input.DeviceID) == "" {
		return nil, ErrDeviceIDRequired
	}

	u, err := s.users.FindByEmail(input.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			s.logger.Warn("login failed - unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Inactive accounts get the same generic failure as unknown ones.
	if !u.Active {
		s.logger.Warn("login failed - inactive user", zap.Uint("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}

	if err := s.credentials.VerifyPassword(u.PasswordHash, input.Password); err != nil {
		s.logger.Warn("login failed - password mismatch", zap.Uint("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}

	secret, err := session.NewRefreshSecret(s.config.RefreshToken.SecretLength)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		ID:               uuid.New().String(),
		UserID:           u.ID,
		Platform:         platform,
		DeviceID:         input.DeviceID,
		IP:               input.IP,
		UserAgent:        input.UserAgent,
		RefreshTokenHash: session.HashRefreshSecret(secret, s.config.RefreshToken.Secret),
		RefreshExpiresAt: now.Add(s.config.RefreshToken.Expiry),
		CreatedAt:        now,
	}

	if err := s.sessions.Create(sess); err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.Generate(u.ID, u.Email, u.Role, sess.ID, platform.Audience())
	if err != nil {
		return nil, err
	}

	s.logger.Info("login succeeded",
		zap.Uint("user_id", u.ID),
		zap.String("session_id", sess.ID),
		zap.String("platform", string(platform)))

	return &TokenPair{
		User:                 u,
		SessionID:            sess.ID,
		AccessToken:          accessToken,
		AccessTokenExpiresIn: s.tokens.AccessExpirySeconds(),
		RefreshSecret:        secret,
		RefreshExpiresAt:     sess.RefreshExpiresAt,
		Platform:             platform,
	}, nil
}

type RefreshInput struct {
	RefreshSecret string
	Platform      string
	IP            string
	UserAgent     string
}

// Refresh exchanges a refresh secret for a new access token and a new
// refresh secret, rotating the session row in place. Any presentation of
// a superseded or revoked secret, including a lost rotation race, revokes
// every session the user has before the error is returned.
func (s *Service) Refresh(input RefreshInput) (*TokenPair, error) {
	platform, err := session.ParsePlatform(input.Platform)
	if err != nil {
		return nil, ErrPlatformMismatch
	}

	presentedHash := session.HashRefreshSecret(input.RefreshSecret, s.config.RefreshToken.Secret)

	sess, err := s.sessions.FindByRefreshHash(presentedHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, s.handleStaleSecret(presentedHash)
		}
		return nil, err
	}

	now := time.Now()

	var active session.Active
	switch state := sess.State().(type) {
	case session.Revoked:
		// Replay of a terminated session is a compromise signal.
		s.logger.Warn("refresh reuse detected - revoked session replayed",
			zap.String("session_id", sess.ID),
			zap.Uint("user_id", sess.UserID))
		return nil, s.revokeAllFailClosed(sess.UserID)
	case session.Active:
		active = state
	}

	if active.ExpiresAt.Before(now) {
		return nil, ErrRefreshTokenExpired
	}

	u, err := s.users.FindByID(sess.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrInvalidRefreshToken
	}

	if sess.Platform != platform {
		s.logger.Warn("refresh rejected - platform mismatch",
			zap.String("session_id", sess.ID),
			zap.String("session_platform", string(sess.Platform)),
			zap.String("presented_platform", string(platform)))
		return nil, ErrPlatformMismatch
	}

	newSecret, err := session.NewRefreshSecret(s.config.RefreshToken.SecretLength)
	if err != nil {
		return nil, err
	}

	rotation := session.Rotation{
		NewHash:      session.HashRefreshSecret(newSecret, s.config.RefreshToken.Secret),
		NewExpiresAt: now.Add(s.config.RefreshToken.Expiry),
		RotatedAt:    now,
		IP:           input.IP,
		UserAgent:    input.UserAgent,
	}

	rotated, err := s.sessions.Rotate(sess.ID, active.RefreshTokenHash, rotation)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Another request rotated this row between our read and the swap.
		// The server cannot tell a benign retry from an attacker replay,
		// so it fails closed.
		s.logger.Warn("refresh reuse detected - lost rotation race",
			zap.String("session_id", sess.ID),
			zap.Uint("user_id", sess.UserID))
		return nil, s.revokeAllFailClosed(sess.UserID)
	}

	accessToken, err := s.tokens.Generate(u.ID, u.Email, u.Role, sess.ID, platform.Audience())
	if err != nil {
		return nil, err
	}

	s.logger.Info("session rotated",
		zap.String("session_id", sess.ID),
		zap.Uint("user_id", u.ID))

	return &TokenPair{
		User:                 u,
		SessionID:            sess.ID,
		AccessToken:          accessToken,
		AccessTokenExpiresIn: s.tokens.AccessExpirySeconds(),
		RefreshSecret:        newSecret,
		RefreshExpiresAt:     rotation.NewExpiresAt,
		Platform:             platform,
	}, nil
}

// handleStaleSecret classifies a secret whose hash no longer matches any
// live session. A match on a superseded hash means the previous secret of
// a rotated session was replayed, which is the canonical stolen-token
// signature; anything older or unknown is indistinguishable from garbage.
func (s *Service) handleStaleSecret(presentedHash string) error {
	sess, err := s.sessions.FindBySupersededHash(presentedHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrInvalidRefreshToken
		}
		return err
	}

	s.logger.Warn("refresh reuse detected - superseded secret replayed",
		zap.String("session_id", sess.ID),
		zap.Uint("user_id", sess.UserID))

	return s.revokeAllFailClosed(sess.UserID)
}

// revokeAllFailClosed runs the reuse-detection kill-switch. The cascade
// must complete before the Conflict surfaces; a failed cascade is a
// server error, never a silent skip.
func (s *Service) revokeAllFailClosed(userID uint) error {
	if _, err := s.sessions.RevokeAllForUser(userID, time.Now()); err != nil {
		return fmt.Errorf("reuse detected but cascade revocation failed: %w", err)
	}
	return ErrReuseDetected
}

// Logout revokes one session. Revoking an unknown or already revoked
// session is a no-op, not an error.
func (s *Service) Logout(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	_, err := s.sessions.Revoke(sessionID, time.Now())
	return err
}

func (s *Service) LogoutAll(userID uint) error {
	_, err := s.sessions.RevokeAllForUser(userID, time.Now())
	return err
}

// SessionInfo is the client-facing view of a session. It never carries
// the refresh token hash.
type SessionInfo struct {
	ID               string           `json:"id"`
	Platform         session.Platform `json:"platform"`
	DeviceID         string           `json:"device_id,omitempty"`
	DeviceLabel      string           `json:"device_label"`
	IP               string           `json:"ip"`
	LastRotatedAt    *time.Time       `json:"last_rotated_at,omitempty"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
	CreatedAt        time.Time        `json:"created_at"`
	Current          bool             `json:"current"`
}

func (s *Service) ListSessions(userID uint, currentSessionID string) ([]SessionInfo, error) {
	sessions, err := s.sessions.ListActiveForUser(userID, time.Now())
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			ID:               sess.ID,
			Platform:         sess.Platform,
			DeviceID:         sess.DeviceID,
			DeviceLabel:      deviceLabel(sess.UserAgent),
			IP:               sess.IP,
			LastRotatedAt:    sess.LastRotatedAt,
			RefreshExpiresAt: sess.RefreshExpiresAt,
			CreatedAt:        sess.CreatedAt,
			Current:          sess.ID == currentSessionID,
		})
	}

	return infos, nil
}

func deviceLabel(uaString string) string {
	ua := useragent.Parse(uaString)

	switch {
	case ua.Name != "" && ua.OS != "":
		return ua.Name + " on " + ua.OS
	case ua.Name != "":
		return ua.Name
	default:
		return "Unknown device"
	}
}

// RevokeSession revokes one of the caller's own sessions. The (id, owner)
// lookup makes cross-user revocation impossible.
func (s *Service) RevokeSession(sessionID string, userID uint) error {
	sess, err := s.sessions.FindForUser(sessionID, userID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if _, revoked := sess.State().(session.Revoked); revoked {
		return ErrSessionAlreadyRevoked
	}

	affected, err := s.sessions.Revoke(sess.ID, time.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost a race with another revocation.
		return ErrSessionAlreadyRevoked
	}

	s.logger.Info("session revoked",
		zap.String("session_id", sess.ID),
		zap.Uint("user_id", userID))

	return nil
}
