package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harborside/authcore/config"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
	}
}

func TestNew(t *testing.T) {
	srv := New(getTestServerConfig(), nil)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.echo)
	assert.True(t, srv.echo.HideBanner)
}

func TestServer_Routing(t *testing.T) {
	srv := New(getTestServerConfig(), nil)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	srv.Get("/get", handler)
	srv.Post("/post", handler)
	srv.Put("/put", handler)
	srv.Delete("/delete", handler)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/get"},
		{http.MethodPost, "/post"},
		{http.MethodPut, "/put"},
		{http.MethodDelete, "/delete"},
	} {
		t.Run(tc.method, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			srv.echo.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestServer_Group(t *testing.T) {
	srv := New(getTestServerConfig(), nil)

	group := srv.Group("/auth")
	require.NotNil(t, group)

	group.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/ping", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", strings.TrimSpace(rec.Body.String()))
}

func TestServer_Echo(t *testing.T) {
	srv := New(getTestServerConfig(), nil)

	assert.Same(t, srv.echo, srv.Echo())
}

func TestConfigureTrustedProxies(t *testing.T) {
	tests := []struct {
		name           string
		trustedProxies []string
	}{
		{"no trusted proxies", nil},
		{"empty entry", []string{""}},
		{"ipv4 address", []string{"192.168.1.1"}},
		{"ipv4 cidr", []string{"192.168.1.0/24"}},
		{"ipv6 address", []string{"2001:db8::1"}},
		{"invalid entry ignored", []string{"not-a-proxy"}},
		{"mixed valid and invalid", []string{"192.168.1.1", "not-a-proxy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			configureTrustedProxies(e, tt.trustedProxies, nil)

			assert.NotNil(t, e.IPExtractor)
		})
	}
}

func TestShortenHandlerName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"short name", "handlers.Login", "handlers.Login"},
		{"module prefix stripped", "github.com/harborside/authcore/handlers.Login", "harborside/authcore/handlers.Login"},
		{"long name truncated", strings.Repeat("a", 100), strings.Repeat("a", 77) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shortenHandlerName(tt.input))
		})
	}
}
