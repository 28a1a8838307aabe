package authn

import (
	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/services/credentials"
	"github.com/harborside/authcore/services/logging"
	"github.com/harborside/authcore/services/session"
	"github.com/harborside/authcore/services/tokens"
	"github.com/harborside/authcore/services/user"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewAuthService),
)

func NewAuthService(cfg *config.Config, users *user.Store, sessions *session.Store, tokenSvc *tokens.Service, credSvc *credentials.Service, logger *logging.Service) *Service {
	return NewService(cfg, users, sessions, tokenSvc, credSvc, logger)
}
