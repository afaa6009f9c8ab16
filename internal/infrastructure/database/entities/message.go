package entities

import (
	"time"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

// Message represents the database schema for chat messages. ID doubles as the
// arrival sequence used to break CreatedAt ties.
type Message struct {
	ID             uint      `gorm:"primaryKey"`
	PublicID       string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	ConversationID uint      `gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Body           string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2;autoCreateTime:false"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// EtoD converts the row into the domain message owned by conversationPublicID.
func (m *Message) EtoD(conversationPublicID string) chat.Message {
	return chat.Message{
		ID:             m.PublicID,
		ConversationID: conversationPublicID,
		Role:           chat.Role(m.Role),
		Body:           m.Body,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// AllModels lists every entity managed by the schema migrations.
func AllModels() []any {
	return []any{&Conversation{}, &Message{}}
}
