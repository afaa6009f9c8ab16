package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
)

// AuthMiddlewares selects the auth policy per route group. Nil entries are skipped.
type AuthMiddlewares struct {
	Optional gin.HandlerFunc
	Required gin.HandlerFunc
}

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider) *Routes {
	return &Routes{
		handlers: handlerProvider,
	}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(engine *gin.Engine, mw AuthMiddlewares) {
	group := engine.Group("/v1")

	visitor := group.Group("/chat")
	if mw.Optional != nil {
		visitor.Use(mw.Optional)
	}
	registerChatRoutes(visitor, r.handlers.Chat)
	if r.handlers.Widget != nil {
		visitor.GET("/ws", r.handlers.Widget.Connect)
	}

	if r.handlers.Admin != nil {
		admin := group.Group("/admin")
		if mw.Required != nil {
			admin.Use(mw.Required)
		}
		registerAdminRoutes(admin, r.handlers.Admin)
	}
}
