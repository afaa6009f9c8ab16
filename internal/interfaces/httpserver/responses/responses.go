package responses

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

const requestIDKey = "request_id"

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code          string `json:"code"`
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Field         string `json:"field,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// HandleError maps domain errors onto HTTP responses.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		errResp := ErrorResponse{
			Code:          domainErr.GetUUID(),
			Error:         message,
			Message:       domainErr.Message,
			Retryable:     domainErr.Retryable(),
			ErrorInstance: domainErr,
			RequestID:     domainErr.GetRequestID(),
		}
		var verr *chat.ValidationError
		if errors.As(err, &verr) {
			errResp.Field = verr.Field
		}
		reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType()), errResp)
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:         message,
		Message:       message,
		ErrorInstance: err,
	})
}

// HandleNewError creates a new typed error at the route layer and handles it
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string, uuid string) {
	err := platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, uuid)
	reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(errorType), ErrorResponse{
		Code:          err.GetUUID(),
		Error:         message,
		Message:       message,
		ErrorInstance: err,
		RequestID:     err.GetRequestID(),
	})
}

// HandleBindError reports a request body or query that failed binding,
// naming the first offending field.
func HandleBindError(reqCtx *gin.Context, err error) {
	errResp := ErrorResponse{
		Code:          "chat-request-001",
		Error:         "invalid request",
		Message:       err.Error(),
		ErrorInstance: err,
		RequestID:     reqCtx.GetString(requestIDKey),
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		errResp.Field = fieldPath(verrs[0])
		errResp.Message = errResp.Field + " failed " + verrs[0].Tag() + " validation"
	}
	reqCtx.AbortWithStatusJSON(http.StatusBadRequest, errResp)
}

// fieldPath turns "SubmitMessageRequest.contact.email" into "contact.email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// SubmitResponse is returned for an accepted message.
type SubmitResponse struct {
	Success           bool            `json:"success"`
	ConversationID    string          `json:"conversation_id"`
	AnonymousClientID string          `json:"anonymous_client_id"`
	Message           chat.Message    `json:"message"`
	Transition        chat.Transition `json:"transition"`
}

// NewSubmitResponse maps a reconciliation result.
func NewSubmitResponse(result *chat.Result) SubmitResponse {
	return SubmitResponse{
		Success:           true,
		ConversationID:    result.Conversation.ID,
		AnonymousClientID: result.Conversation.AnonymousClientID,
		Message:           *result.Message,
		Transition:        result.Transition,
	}
}

// HistoryResponse wraps a conversation history.
type HistoryResponse struct {
	Data []chat.Message `json:"data"`
}

// ConversationListResponse wraps the admin inbox.
type ConversationListResponse struct {
	Data []chat.ConversationSummary `json:"data"`
}

// DeletedResponse confirms a history wipe.
type DeletedResponse struct {
	Success bool `json:"success"`
}
