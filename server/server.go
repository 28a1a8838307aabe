package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/services/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(logger))

	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Get(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.GET(path, handler, m...)
}

func (s *Server) Post(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.POST(path, handler, m...)
}

func (s *Server) Put(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.PUT(path, handler, m...)
}

func (s *Server) Delete(path string, handler echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.DELETE(path, handler, m...)
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Use(m ...echo.MiddlewareFunc) {
	s.echo.Use(m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// LogRoutes dumps the route table at debug level once registration is done.
func (s *Server) LogRoutes() {
	for _, route := range s.echo.Routes() {
		s.logger.Debug("registered route",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.String("handler", shortenHandlerName(route.Name)))
	}
}

// configureTrustedProxies restricts X-Forwarded-For extraction to the
// configured ranges. With no valid ranges the remote address is used
// directly, so a spoofed header can never influence rate-limit keys or
// session metadata.
func configureTrustedProxies(e *echo.Echo, proxies []string, logger *logging.Service) {
	var ranges []echo.TrustOption

	for _, proxy := range proxies {
		if proxy == "" {
			continue
		}

		cidr := proxy
		if !strings.Contains(cidr, "/") {
			ip := net.ParseIP(cidr)
			if ip == nil {
				logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy))
				continue
			}
			if ip.To4() != nil {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}

		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy))
			continue
		}

		ranges = append(ranges, echo.TrustIPRange(ipNet))
	}

	if len(ranges) == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}

	e.IPExtractor = echo.ExtractIPFromXFFHeader(ranges...)
}

func shortenHandlerName(name string) string {
	name = strings.TrimPrefix(name, "github.com/")
	if len(name) > 80 {
		return name[:77] + "..."
	}
	return name
}
