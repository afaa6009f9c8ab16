package v1

import (
	"github.com/gin-gonic/gin"

	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(router gin.IRoutes, handler *handlers.ChatHandler) {
	router.POST("/messages", handler.SubmitMessage)
	router.GET("/history", handler.GetHistory)
	router.DELETE("/history", handler.DeleteHistory)
}
