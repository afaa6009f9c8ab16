// Package requests contains HTTP request DTOs for the support-chat-api.
package requests

import (
	"time"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

// ContactRequest carries optional visitor contact details.
type ContactRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,max=255"`
	Email *string `json:"email,omitempty" binding:"omitempty,max=255"`
	Phone *string `json:"phone,omitempty" binding:"omitempty,max=64"`
}

// ToDomain converts the DTO to domain contact fields.
func (c *ContactRequest) ToDomain() chat.Contact {
	if c == nil {
		return chat.Contact{}
	}
	return chat.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// SubmitMessageRequest is a visitor message sent over HTTP. The account is
// taken from the bearer token, never from the body.
type SubmitMessageRequest struct {
	AnonymousClientID string          `json:"anonymous_client_id" binding:"max=128"`
	Body              string          `json:"body" binding:"required,max=8000"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	Contact           *ContactRequest `json:"contact,omitempty"`
}

// ToDomain builds the raw submit request for a visitor.
func (r SubmitMessageRequest) ToDomain(accountID string) chat.SubmitRequest {
	return chat.SubmitRequest{
		AnonymousClientID: r.AnonymousClientID,
		AccountID:         accountID,
		Authenticated:     accountID != "",
		Contact:           r.Contact.ToDomain(),
		Body:              r.Body,
		Role:              chat.RoleVisitor,
		SentAt:            r.SentAt,
	}
}

// OperatorReplyRequest is an operator message addressed to a conversation.
type OperatorReplyRequest struct {
	Body   string     `json:"body" binding:"required,max=8000"`
	SentAt *time.Time `json:"sent_at,omitempty"`
}

// ToDomain builds the raw submit request for an operator reply.
func (r OperatorReplyRequest) ToDomain(anonymousClientID string) chat.SubmitRequest {
	return chat.SubmitRequest{
		AnonymousClientID: anonymousClientID,
		Body:              r.Body,
		Role:              chat.RoleOperator,
		SentAt:            r.SentAt,
	}
}

// HistoryQuery selects the conversation of a visitor.
type HistoryQuery struct {
	AnonymousClientID string `form:"anonymous_client_id" binding:"max=128"`
}

// WidgetFrame is a frame sent by the widget over the websocket.
type WidgetFrame struct {
	Type    string          `json:"type"`
	Body    string          `json:"body"`
	SentAt  *time.Time      `json:"sent_at,omitempty"`
	Contact *ContactRequest `json:"contact,omitempty"`
}

// ToDomain builds the raw submit request for a widget frame.
func (f WidgetFrame) ToDomain(anonymousClientID, accountID string) chat.SubmitRequest {
	return SubmitMessageRequest{
		AnonymousClientID: anonymousClientID,
		Body:              f.Body,
		SentAt:            f.SentAt,
		Contact:           f.Contact,
	}.ToDomain(accountID)
}
