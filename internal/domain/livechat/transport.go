package livechat

import (
	"context"
	"time"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

// Kind distinguishes confirmed messages from failure notices on a channel.
type Kind string

const (
	KindMessage Kind = "message"
	KindError   Kind = "error"
)

// Envelope is the wire payload carried by the transport, both for inbound
// client events and for confirmed messages fanned out to subscribers.
type Envelope struct {
	Kind              Kind          `json:"kind"`
	MessageID         string        `json:"message_id,omitempty"`
	ConversationID    string        `json:"conversation_id,omitempty"`
	Role              chat.Role     `json:"role,omitempty"`
	Body              string        `json:"body,omitempty"`
	SentAt            time.Time     `json:"sent_at"`
	AnonymousClientID string        `json:"anonymous_client_id,omitempty"`
	AccountID         string        `json:"account_id,omitempty"`
	Authenticated     bool          `json:"authenticated,omitempty"`
	Contact           *chat.Contact `json:"contact,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// HistoryPage is one page of channel history in delivery order. An empty
// Next means the end of the channel was reached.
type HistoryPage struct {
	Envelopes []Envelope
	Next      string
}

// InboundDelivery is one event taken from the inbound stream. Exactly one of
// Ack or Nack must be called.
type InboundDelivery struct {
	Envelope Envelope
	Ack      func()
	Nack     func()
}

// Transport is the publish/subscribe layer. Implementations must be safe for
// concurrent use and are closed once at shutdown.
type Transport interface {
	Publish(ctx context.Context, channel string, env Envelope) error
	History(ctx context.Context, channel, cursor string, limit int) (HistoryPage, error)
	Subscribe(ctx context.Context, channel string) (<-chan Envelope, error)
	Inbound(ctx context.Context) (<-chan InboundDelivery, error)
	Purge(ctx context.Context, channel string) error
	Close() error
}

// MessageEnvelope wraps a confirmed message for fan-out on anonymousClientID's channel.
func MessageEnvelope(anonymousClientID string, msg chat.Message) Envelope {
	return Envelope{
		Kind:              KindMessage,
		MessageID:         msg.ID,
		ConversationID:    msg.ConversationID,
		Role:              msg.Role,
		Body:              msg.Body,
		SentAt:            msg.CreatedAt,
		AnonymousClientID: anonymousClientID,
	}
}

// ErrorEnvelope builds a failure notice for a sender.
func ErrorEnvelope(anonymousClientID, reason string, at time.Time) Envelope {
	return Envelope{
		Kind:              KindError,
		AnonymousClientID: anonymousClientID,
		Error:             reason,
		SentAt:            at,
	}
}

// Message converts a message envelope back into a chat message.
func (e Envelope) Message() chat.Message {
	return chat.Message{
		ID:             e.MessageID,
		ConversationID: e.ConversationID,
		Role:           e.Role,
		Body:           e.Body,
		CreatedAt:      e.SentAt.UTC().Truncate(time.Millisecond),
	}
}

// SubmitRequest turns an inbound envelope into the raw event shape validated by chat.ParseEvent.
func (e Envelope) SubmitRequest() chat.SubmitRequest {
	req := chat.SubmitRequest{
		AnonymousClientID: e.AnonymousClientID,
		AccountID:         e.AccountID,
		Authenticated:     e.Authenticated,
		Body:              e.Body,
		Role:              e.Role,
	}
	if e.Contact != nil {
		req.Contact = *e.Contact
	}
	if !e.SentAt.IsZero() {
		sentAt := e.SentAt
		req.SentAt = &sentAt
	}
	return req
}
