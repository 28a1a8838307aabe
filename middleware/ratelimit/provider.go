package ratelimit

import (
	"github.com/harborside/authcore/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)

func ProvideRateLimitStore(cfg *config.Config) Store {
	return NewStore(&cfg.RateLimit)
}
