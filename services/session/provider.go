package session

import (
	"github.com/harborside/authcore/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(NewSessionStore),
)

func NewSessionStore(db *gorm.DB, logger *logging.Service) *Store {
	return NewStore(db, logger)
}
