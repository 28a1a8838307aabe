package user

import (
	"strings"
	"time"
)

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	Role         string    `json:"role" gorm:"size:32;not null;default:user"`
	// Active carries no column default: gorm omits zero-value fields on
	// insert when a default is set, which would silently flip false to true.
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// NormalizeEmail is applied before every lookup and on creation so the
// same mailbox cannot register twice under different casings.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
