package entities

import (
	"time"

	"jan-server/services/support-chat-api/internal/domain/chat"
)

// Conversation represents the database schema for conversations.
type Conversation struct {
	ID                uint      `gorm:"primaryKey"`
	PublicID          string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	AnonymousClientID string    `gorm:"type:varchar(128);uniqueIndex:idx_conversations_anonymous_client_id;not null"`
	AccountID         *string   `gorm:"type:varchar(128);uniqueIndex:idx_conversations_account_id"`
	ContactName       *string   `gorm:"type:varchar(255)"`
	ContactEmail      *string   `gorm:"type:varchar(255)"`
	ContactPhone      *string   `gorm:"type:varchar(64)"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"not null;index:idx_conversations_updated_at;autoUpdateTime:false"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

func NewSchemaConversation(c *chat.Conversation) *Conversation {
	return &Conversation{
		PublicID:          c.ID,
		AnonymousClientID: c.AnonymousClientID,
		AccountID:         c.AccountID,
		ContactName:       c.Contact.Name,
		ContactEmail:      c.Contact.Email,
		ContactPhone:      c.Contact.Phone,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

// EtoD converts the row into the domain conversation.
func (c *Conversation) EtoD() *chat.Conversation {
	return &chat.Conversation{
		ID:                c.PublicID,
		AnonymousClientID: c.AnonymousClientID,
		AccountID:         c.AccountID,
		Contact: chat.Contact{
			Name:  c.ContactName,
			Email: c.ContactEmail,
			Phone: c.ContactPhone,
		},
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}
