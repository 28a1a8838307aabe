package credentials

import (
	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewCredentialsService),
)

func NewCredentialsService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg, logger)
}
