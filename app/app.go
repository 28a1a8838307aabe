package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/database"
	"github.com/harborside/authcore/handlers"
	"github.com/harborside/authcore/middleware/ratelimit"
	"github.com/harborside/authcore/middleware/sessionguard"
	"github.com/harborside/authcore/openapi"
	"github.com/harborside/authcore/server"
	"github.com/harborside/authcore/services/authn"
	"github.com/harborside/authcore/services/credentials"
	"github.com/harborside/authcore/services/logging"
	"github.com/harborside/authcore/services/session"
	"github.com/harborside/authcore/services/tokens"
	"github.com/harborside/authcore/services/user"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// App wires every service into one fx graph and owns its lifecycle.
type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	server *server.Server
	db     *gorm.DB
}

// New loads configuration from the environment and assembles the app.
func New() (*App, error) {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return NewWithConfig(cfg)
}

func NewWithConfig(cfg *config.Config) (*App, error) {
	app := &App{config: cfg}

	app.fx = fx.New(
		fx.Supply(cfg),
		fx.Supply(database.WithModels(&user.User{}, &session.Session{})),
		fx.NopLogger,

		logging.Module,
		database.Module,
		user.Module,
		session.Module,
		tokens.Module,
		credentials.Module,
		authn.Module,
		sessionguard.Module,
		ratelimit.Module,
		server.NewProvider(),
		handlers.Module,
		openapi.Module,

		fx.Invoke(func(srv *server.Server, db *gorm.DB, logger *logging.Service) {
			app.server = srv
			app.db = db
			app.logger = logger

			srv.Get("/health", healthHandler)
		}),
	)

	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}

	return app, nil
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("failed to stop application gracefully")
		} else {
			log.Printf("failed to stop application gracefully: %v", err)
		}
	}
}

// Run starts the app and blocks until SIGINT or SIGTERM.
func (a *App) Run() {
	if err := a.Start(context.Background()); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	a.logger.Info("received shutdown signal, stopping")

	a.Stop()
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Server() *echo.Echo {
	if a.server == nil {
		return nil
	}
	return a.server.Echo()
}
