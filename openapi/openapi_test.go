package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func getTestOpenAPIConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "authcore",
			URL:  "http://localhost:8080",
		},
	}
}

func TestDocument(t *testing.T) {
	svc := NewService(getTestOpenAPIConfig())
	doc := svc.Document()

	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, "authcore", doc.Info.Title)

	for _, path := range []string{
		"/auth/login",
		"/auth/refresh",
		"/auth/logout",
		"/auth/logout-all",
		"/auth/me",
		"/auth/sessions",
		"/auth/sessions/{id}",
	} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}

	t.Run("protected operations require bearer auth", func(t *testing.T) {
		op := doc.Paths.Find("/auth/sessions").Get
		require.NotNil(t, op.Security)
		assert.NotEmpty(t, *op.Security)
	})

	t.Run("refresh documents the conflict outcome", func(t *testing.T) {
		op := doc.Paths.Find("/auth/refresh").Post
		assert.NotNil(t, op.Responses.Value("409"))
	})
}

func TestServeDocument(t *testing.T) {
	cfg := getTestOpenAPIConfig()
	srv := server.New(cfg, nil)
	NewService(cfg).Register(srv)

	t.Run("json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
	})

	t.Run("yaml", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, "3.0.3", doc["openapi"])
	})
}
