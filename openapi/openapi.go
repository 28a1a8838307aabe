package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/harborside/authcore/config"
	"github.com/harborside/authcore/server"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

// Service holds the API description and serves it at /openapi.json and
// /openapi.yaml. The document is built once at construction.
type Service struct {
	doc *openapi3.T
}

func NewService(cfg *config.Config) *Service {
	return &Service{doc: buildDocument(cfg)}
}

func (s *Service) Document() *openapi3.T {
	return s.doc
}

func (s *Service) Register(srv *server.Server) {
	srv.Get("/openapi.json", s.serveJSON)
	srv.Get("/openapi.yaml", s.serveYAML)
}

func (s *Service) serveJSON(c echo.Context) error {
	return c.JSON(http.StatusOK, s.doc)
}

func (s *Service) serveYAML(c echo.Context) error {
	data, err := s.doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal openapi document: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to decode openapi document: %w", err)
	}

	out, err := yaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode openapi document as yaml: %w", err)
	}

	return c.Blob(http.StatusOK, "application/yaml", out)
}

func buildDocument(cfg *config.Config) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       cfg.App.Name,
			Description: "Session-backed authentication API with refresh rotation and reuse detection.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			&openapi3.Server{URL: cfg.App.URL},
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{
					Value: openapi3.NewJWTSecurityScheme(),
				},
			},
		},
	}

	errorContent := jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
		"code":    stringSchema(),
		"message": stringSchema(),
	}, "code", "message"))

	tokenContent := jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
		"user": objectSchema(map[string]*openapi3.SchemaRef{
			"id":    intSchema(),
			"email": stringSchema(),
			"role":  stringSchema(),
		}),
		"session_id":         stringSchema(),
		"access_token":       stringSchema(),
		"token_type":         stringSchema(),
		"expires_in":         intSchema(),
		"refresh_token":      stringSchema(),
		"refresh_expires_at": stringSchema(),
		"platform":           stringSchema(),
	}, "session_id", "access_token", "token_type", "expires_in"))

	sessionContent := jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
		"sessions": {Value: &openapi3.Schema{
			Type: &openapi3.Types{"array"},
			Items: objectSchema(map[string]*openapi3.SchemaRef{
				"id":                 stringSchema(),
				"platform":           stringSchema(),
				"device_id":          stringSchema(),
				"device_label":       stringSchema(),
				"ip":                 stringSchema(),
				"last_rotated_at":    stringSchema(),
				"refresh_expires_at": stringSchema(),
				"created_at":         stringSchema(),
				"current":            boolSchema(),
			}),
		}},
	}))

	doc.Paths.Set("/auth/login", &openapi3.PathItem{
		Post: operation("login", "Authenticate with email and password",
			withBody(jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
				"email":     stringSchema(),
				"password":  stringSchema(),
				"platform":  stringSchema(),
				"device_id": stringSchema(),
			}, "email", "password"))),
			withResponse(200, "Token pair issued", tokenContent),
			withResponse(400, "Invalid platform or missing device id", errorContent),
			withResponse(401, "Invalid credentials", errorContent),
		),
	})

	doc.Paths.Set("/auth/refresh", &openapi3.PathItem{
		Post: operation("refresh", "Rotate the refresh secret and mint a new access token",
			withBody(jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
				"refresh_token": stringSchema(),
				"platform":      stringSchema(),
			}))),
			withResponse(200, "Token pair rotated", tokenContent),
			withResponse(401, "Unknown, expired or mismatched secret", errorContent),
			withResponse(409, "Reuse detected, all sessions revoked", errorContent),
		),
	})

	doc.Paths.Set("/auth/logout", &openapi3.PathItem{
		Post: operation("logout", "Revoke the current session",
			withSecurity(),
			withResponse(204, "Session revoked", nil),
			withResponse(401, "Invalid or expired token", errorContent),
		),
	})

	doc.Paths.Set("/auth/logout-all", &openapi3.PathItem{
		Post: operation("logoutAll", "Revoke every session of the current user",
			withSecurity(),
			withResponse(204, "All sessions revoked", nil),
			withResponse(401, "Invalid or expired token", errorContent),
		),
	})

	doc.Paths.Set("/auth/me", &openapi3.PathItem{
		Get: operation("me", "Describe the authenticated identity",
			withSecurity(),
			withResponse(200, "Current identity", jsonContent(objectSchema(map[string]*openapi3.SchemaRef{
				"user": objectSchema(map[string]*openapi3.SchemaRef{
					"id":    intSchema(),
					"email": stringSchema(),
					"role":  stringSchema(),
				}),
				"session_id": stringSchema(),
				"platform":   stringSchema(),
			}))),
			withResponse(401, "Invalid or expired token", errorContent),
		),
	})

	doc.Paths.Set("/auth/sessions", &openapi3.PathItem{
		Get: operation("listSessions", "List the user's active sessions",
			withSecurity(),
			withResponse(200, "Active sessions, newest first", sessionContent),
			withResponse(401, "Invalid or expired token", errorContent),
		),
	})

	doc.Paths.Set("/auth/sessions/{id}", &openapi3.PathItem{
		Delete: operation("revokeSession", "Revoke one of the user's sessions",
			withSecurity(),
			withPathParam("id", "Session identifier"),
			withResponse(204, "Session revoked", nil),
			withResponse(400, "Session already revoked", errorContent),
			withResponse(404, "No such session for this user", errorContent),
		),
	})

	return doc
}

type operationOption func(*openapi3.Operation)

func operation(id, summary string, opts ...operationOption) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: id,
		Summary:     summary,
		Tags:        []string{"auth"},
		Responses:   openapi3.NewResponses(),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

func withBody(content openapi3.Content) operationOption {
	return func(op *openapi3.Operation) {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  content,
			},
		}
	}
}

func withResponse(status int, description string, content openapi3.Content) operationOption {
	return func(op *openapi3.Operation) {
		op.Responses.Set(fmt.Sprintf("%d", status), &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &description,
				Content:     content,
			},
		})
	}
}

func withSecurity() operationOption {
	return func(op *openapi3.Operation) {
		op.Security = openapi3.NewSecurityRequirements().
			With(openapi3.NewSecurityRequirement().Authenticate("bearerAuth"))
	}
}

func withPathParam(name, description string) operationOption {
	return func(op *openapi3.Operation) {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:        name,
				In:          "path",
				Required:    true,
				Description: description,
				Schema:      stringSchema(),
			},
		})
	}
}

func jsonContent(schema *openapi3.SchemaRef) openapi3.Content {
	return openapi3.Content{
		"application/json": &openapi3.MediaType{Schema: schema},
	}
}

func objectSchema(props map[string]*openapi3.SchemaRef, required ...string) *openapi3.SchemaRef {
	schemas := make(openapi3.Schemas, len(props))
	for name, ref := range props {
		schemas[name] = ref
	}
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: schemas,
		Required:   required,
	}}
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func intSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}
