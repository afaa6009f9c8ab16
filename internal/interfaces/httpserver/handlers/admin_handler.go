package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/responses"
)

// AdminHandler exposes the operator inbox.
type AdminHandler struct {
	service chat.Service
	log     zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(service chat.Service, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		log:     log.With().Str("handler", "admin").Logger(),
	}
}

// ListConversations handles GET /v1/admin/conversations
// @Summary List conversations
// @Description Lists every conversation, most recently active first
// @Tags Admin
// @Produce json
// @Success 200 {object} responses.ConversationListResponse
// @Security BearerAuth
// @Router /v1/admin/conversations [get]
func (h *AdminHandler) ListConversations(c *gin.Context) {
	list, err := h.service.ListConversations(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, responses.ConversationListResponse{Data: list})
}

// GetMessages handles GET /v1/admin/conversations/:anonymous_client_id/messages
// @Summary Get a conversation
// @Tags Admin
// @Produce json
// @Param anonymous_client_id path string true "Anonymous client id"
// @Success 200 {object} responses.HistoryResponse
// @Security BearerAuth
// @Router /v1/admin/conversations/{anonymous_client_id}/messages [get]
func (h *AdminHandler) GetMessages(c *gin.Context) {
	history, err := h.service.GetHistory(c.Request.Context(), c.Param("anonymous_client_id"), nil)
	if err != nil {
		responses.HandleError(c, err, "failed to load conversation")
		return
	}
	c.JSON(http.StatusOK, responses.HistoryResponse{Data: history})
}

// Reply handles POST /v1/admin/conversations/:anonymous_client_id/messages
// @Summary Reply as operator
// @Tags Admin
// @Accept json
// @Produce json
// @Param anonymous_client_id path string true "Anonymous client id"
// @Param request body requests.OperatorReplyRequest true "Reply"
// @Success 201 {object} responses.SubmitResponse
// @Failure 404 {object} responses.ErrorResponse
// @Security BearerAuth
// @Router /v1/admin/conversations/{anonymous_client_id}/messages [post]
func (h *AdminHandler) Reply(c *gin.Context) {
	var req requests.OperatorReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleBindError(c, err)
		return
	}

	result, err := h.service.SubmitMessage(c.Request.Context(), req.ToDomain(c.Param("anonymous_client_id")))
	if err != nil {
		responses.HandleError(c, err, "failed to send reply")
		return
	}
	c.JSON(http.StatusCreated, responses.NewSubmitResponse(result))
}

// DeleteMessages handles DELETE /v1/admin/conversations/:anonymous_client_id/messages
// @Summary Delete a conversation's messages
// @Tags Admin
// @Produce json
// @Param anonymous_client_id path string true "Anonymous client id"
// @Success 200 {object} responses.DeletedResponse
// @Failure 404 {object} responses.ErrorResponse
// @Security BearerAuth
// @Router /v1/admin/conversations/{anonymous_client_id}/messages [delete]
func (h *AdminHandler) DeleteMessages(c *gin.Context) {
	if err := h.service.DeleteHistory(c.Request.Context(), c.Param("anonymous_client_id"), nil); err != nil {
		responses.HandleError(c, err, "failed to delete messages")
		return
	}
	c.JSON(http.StatusOK, responses.DeletedResponse{Success: true})
}
