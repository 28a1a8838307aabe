package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/harborside/authcore/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the persistence layer for Session rows. All mutating operations
// are single conditional statements so the invariants hold without any
// in-process locking: correctness is delegated to row-level atomicity.
type Store struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewStore(db *gorm.DB, logger *logging.Service) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) Create(sess *Session) error {
	if err := s.db.Create(sess).Error; err != nil {
		if s.logger != nil {
			s.logger.Error("failed to create session", zap.Error(err))
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("session created",
			zap.String("session_id", sess.ID),
			zap.Uint("user_id", sess.UserID),
			zap.String("platform", string(sess.Platform)))
	}

	return nil
}

func (s *Store) FindByID(id string) (*Session, error) {
	var sess Session
	if err := s.db.Where("id = ?", id).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

func (s *Store) FindByRefreshHash(hash string) (*Session, error) {
	var sess Session
	if err := s.db.Where("refresh_token_hash = ?", hash).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

// FindBySupersededHash resolves a secret that was rotated away by the most
// recent refresh. A hit here is a reuse signal, never a valid exchange.
func (s *Store) FindBySupersededHash(hash string) (*Session, error) {
	var sess Session
	if err := s.db.Where("superseded_token_hash = ?", hash).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

// FindForUser looks a session up by (id, owner) so cross-user operations
// are impossible at the query level.
func (s *Store) FindForUser(id string, userID uint) (*Session, error) {
	var sess Session
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &sess, nil
}

// Rotation carries the replacement refresh material and the last-seen
// connection metadata written on a successful rotation.
type Rotation struct {
	NewHash      string
	NewExpiresAt time.Time
	RotatedAt    time.Time
	IP           string
	UserAgent    string
}

// Rotate performs the compare-and-swap that makes refresh secrets
// single-use: the update only applies while the row still carries oldHash
// and has not been revoked. It returns false when another request rotated
// or revoked the row first; exactly one of N concurrent callers can win.
func (s *Store) Rotate(id, oldHash string, rot Rotation) (bool, error) {
	result := s.db.Model(&Session{}).
		Where("id = ? AND refresh_token_hash = ? AND revoked_at IS NULL", id, oldHash).
		Updates(map[string]any{
			"refresh_token_hash":    rot.NewHash,
			"superseded_token_hash": oldHash,
			"refresh_expires_at":    rot.NewExpiresAt,
			"last_rotated_at":       rot.RotatedAt,
			"ip":                    rot.IP,
			"user_agent":            rot.UserAgent,
		})

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to rotate session", zap.Error(result.Error), zap.String("session_id", id))
		}
		return false, fmt.Errorf("failed to rotate session: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// Revoke terminates a session. The condition on revoked_at keeps
// revocation terminal and idempotent; zero affected rows is not an error.
func (s *Store) Revoke(id string, at time.Time) (int64, error) {
	result := s.db.Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke session", zap.Error(result.Error), zap.String("session_id", id))
		}
		return 0, fmt.Errorf("failed to revoke session: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// RevokeAllForUser terminates every live session the user has. It backs
// both logout-all and the reuse-detection kill-switch.
func (s *Store) RevokeAllForUser(userID uint, at time.Time) (int64, error) {
	result := s.db.Model(&Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at)

	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to revoke user sessions", zap.Error(result.Error), zap.Uint("user_id", userID))
		}
		return 0, fmt.Errorf("failed to revoke user sessions: %w", result.Error)
	}

	if s.logger != nil && result.RowsAffected > 0 {
		s.logger.Info("revoked all user sessions",
			zap.Uint("user_id", userID),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// ListActiveForUser returns the user's live sessions, newest first.
func (s *Store) ListActiveForUser(userID uint, now time.Time) ([]Session, error) {
	var sessions []Session
	err := s.db.
		Where("user_id = ? AND revoked_at IS NULL AND refresh_expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
