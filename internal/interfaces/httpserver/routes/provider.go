package routes

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/support-chat-api/internal/infrastructure/auth"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
	v1 "jan-server/services/support-chat-api/internal/interfaces/httpserver/routes/v1"
)

// Provider coordinates all route registrations.
type Provider struct {
	V1            *v1.Routes
	authValidator *auth.Validator
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider, authValidator *auth.Validator) *Provider {
	return &Provider{
		V1:            v1.NewRoutes(handlerProvider),
		authValidator: authValidator,
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	if p.authValidator == nil {
		p.V1.Register(engine, v1.AuthMiddlewares{})
		return
	}
	p.V1.Register(engine, v1.AuthMiddlewares{
		Optional: p.authValidator.Optional(),
		Required: p.authValidator.Required(),
	})
}
