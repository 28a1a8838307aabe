package session

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the client surface a session was issued for. A
// session can never be refreshed under a different platform's audience.
type Platform string

const (
	PlatformWeb    Platform = "WEB"
	PlatformMobile Platform = "MOBILE"
)

// ParsePlatform normalizes a request-level platform value ("web",
// "MOBILE", ...) to the canonical uppercase form.
func ParsePlatform(value string) (Platform, error) {
	switch Platform(strings.ToUpper(strings.TrimSpace(value))) {
	case PlatformWeb:
		return PlatformWeb, nil
	case PlatformMobile:
		return PlatformMobile, nil
	default:
		return "", fmt.Errorf("unknown platform: %q", value)
	}
}

// Audience is the lowercase form embedded in access-token claims.
func (p Platform) Audience() string {
	return strings.ToLower(string(p))
}

// Session is one row per logical authenticated session. It is mutated in
// place across refresh rotations rather than chained into new rows.
type Session struct {
	ID               string   `json:"id" gorm:"primaryKey;size:36"`
	UserID           uint     `json:"user_id" gorm:"index;not null"`
	Platform         Platform `json:"platform" gorm:"size:16;not null"`
	DeviceID         string   `json:"device_id,omitempty" gorm:"size:128"`
	IP               string   `json:"ip" gorm:"size:64"`
	UserAgent        string   `json:"user_agent" gorm:"size:512"`
	RefreshTokenHash string   `json:"-" gorm:"uniqueIndex;size:64;not null"`
	// SupersededTokenHash keeps the hash rotated away by the most recent
	// refresh, so a sequential replay of the previous secret is
	// distinguishable from a token that never existed.
	SupersededTokenHash *string    `json:"-" gorm:"uniqueIndex;size:64"`
	RefreshExpiresAt    time.Time  `json:"refresh_expires_at" gorm:"index;not null"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty" gorm:"index"`
	LastRotatedAt       *time.Time `json:"last_rotated_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (Session) TableName() string {
	return "sessions"
}

// State is the session's refresh-chain state. Revocation is terminal: no
// operation transitions a Revoked session back to Active.
type State interface {
	sessionState()
}

// Active holds the only material a caller may rotate against.
type Active struct {
	RefreshTokenHash string
	ExpiresAt        time.Time
}

// Revoked records when the session was terminated.
type Revoked struct {
	At time.Time
}

func (Active) sessionState()  {}
func (Revoked) sessionState() {}

func (s *Session) State() State {
	if s.RevokedAt != nil {
		return Revoked{At: *s.RevokedAt}
	}
	return Active{
		RefreshTokenHash: s.RefreshTokenHash,
		ExpiresAt:        s.RefreshExpiresAt,
	}
}
