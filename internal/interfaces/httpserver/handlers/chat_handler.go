package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/infrastructure/auth"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

// ChatHandler exposes the visitor side of the support chat.
type ChatHandler struct {
	service chat.Service
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// SubmitMessage handles POST /v1/chat/messages
// @Summary Send a visitor message
// @Description Stores a visitor message, reconciling the anonymous and authenticated identity of the caller
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body requests.SubmitMessageRequest true "Message"
// @Success 201 {object} responses.SubmitResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 409 {object} responses.ErrorResponse
// @Failure 503 {object} responses.ErrorResponse
// @Router /v1/chat/messages [post]
func (h *ChatHandler) SubmitMessage(c *gin.Context) {
	var req requests.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleBindError(c, err)
		return
	}

	accountID, _ := auth.AccountID(c)
	result, err := h.service.SubmitMessage(c.Request.Context(), req.ToDomain(accountID))
	if err != nil {
		responses.HandleError(c, err, "failed to submit message")
		return
	}

	c.JSON(http.StatusCreated, responses.NewSubmitResponse(result))
}

// GetHistory handles GET /v1/chat/history
// @Summary Get the caller's conversation history
// @Tags Chat
// @Produce json
// @Param anonymous_client_id query string false "Anonymous client id"
// @Success 200 {object} responses.HistoryResponse
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/chat/history [get]
func (h *ChatHandler) GetHistory(c *gin.Context) {
	anonymousClientID, accountID, ok := h.identity(c)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), anonymousClientID, accountID)
	if err != nil {
		responses.HandleError(c, err, "failed to load history")
		return
	}

	c.JSON(http.StatusOK, responses.HistoryResponse{Data: history})
}

// DeleteHistory handles DELETE /v1/chat/history
// @Summary Delete the caller's conversation history
// @Tags Chat
// @Produce json
// @Param anonymous_client_id query string false "Anonymous client id"
// @Success 200 {object} responses.DeletedResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chat/history [delete]
func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	anonymousClientID, accountID, ok := h.identity(c)
	if !ok {
		return
	}

	if err := h.service.DeleteHistory(c.Request.Context(), anonymousClientID, accountID); err != nil {
		responses.HandleError(c, err, "failed to delete history")
		return
	}

	c.JSON(http.StatusOK, responses.DeletedResponse{Success: true})
}

// identity reads the visitor identity from the query and the bearer token.
func (h *ChatHandler) identity(c *gin.Context) (string, *string, bool) {
	var q requests.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.HandleBindError(c, err)
		return "", nil, false
	}

	var accountID *string
	if id, ok := auth.AccountID(c); ok {
		accountID = &id
	}
	anonymousClientID := strings.TrimSpace(q.AnonymousClientID)
	if anonymousClientID == "" && accountID == nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "anonymous_client_id is required", "chat-request-002")
		return "", nil, false
	}
	return anonymousClientID, accountID, true
}
