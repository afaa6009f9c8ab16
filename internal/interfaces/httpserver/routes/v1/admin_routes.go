package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
)

func registerAdminRoutes(router gin.IRoutes, handler *handlers.AdminHandler) {
	router.GET("/conversations", handler.ListConversations)
	router.GET("/conversations/:anonymous_client_id/messages", handler.GetMessages)
	router.POST("/conversations/:anonymous_client_id/messages", handler.Reply)
	router.DELETE("/conversations/:anonymous_client_id/messages", handler.DeleteMessages)
}
