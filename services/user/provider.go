package user

import (
	"github.com/harborside/authcore/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(NewUserStore),
)

func NewUserStore(db *gorm.DB, logger *logging.Service) *Store {
	return NewStore(db, logger)
}
