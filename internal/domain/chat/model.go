package chat

import (
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleVisitor  Role = "VISITOR"
	RoleOperator Role = "OPERATOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleVisitor || r == RoleOperator
}

// IdentityState is the identity binding of a conversation.
type IdentityState string

const (
	StateNone          IdentityState = "NONE"
	StateAnonymousOnly IdentityState = "ANONYMOUS_ONLY"
	StateAccountOnly   IdentityState = "ACCOUNT_ONLY"
	StateBothBound     IdentityState = "BOTH_BOUND"
)

// Contact holds optional visitor contact details. Nil fields are unknown.
type Contact struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// IsZero reports whether no contact field is set.
func (c Contact) IsZero() bool {
	return c.Name == nil && c.Email == nil && c.Phone == nil
}

// Changes returns the fields of next that are set and differ from c.
func (c Contact) Changes(next Contact) (Contact, bool) {
	var out Contact
	changed := false
	if differs(c.Name, next.Name) {
		out.Name = next.Name
		changed = true
	}
	if differs(c.Email, next.Email) {
		out.Email = next.Email
		changed = true
	}
	if differs(c.Phone, next.Phone) {
		out.Phone = next.Phone
		changed = true
	}
	return out, changed
}

// Missing returns the fields of other that c does not have yet.
func (c Contact) Missing(other Contact) (Contact, bool) {
	var out Contact
	filled := false
	if c.Name == nil && other.Name != nil {
		out.Name = other.Name
		filled = true
	}
	if c.Email == nil && other.Email != nil {
		out.Email = other.Email
		filled = true
	}
	if c.Phone == nil && other.Phone != nil {
		out.Phone = other.Phone
		filled = true
	}
	return out, filled
}

// Merge overlays the set fields of patch onto c.
func (c Contact) Merge(patch Contact) Contact {
	if patch.Name != nil {
		c.Name = patch.Name
	}
	if patch.Email != nil {
		c.Email = patch.Email
	}
	if patch.Phone != nil {
		c.Phone = patch.Phone
	}
	return c
}

func differs(current, next *string) bool {
	if next == nil {
		return false
	}
	return current == nil || *current != *next
}

// Conversation is one support thread.
type Conversation struct {
	ID                string
	AnonymousClientID string
	AccountID         *string
	Contact           Contact
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IdentityState derives the identity binding of the conversation.
func (c *Conversation) IdentityState() IdentityState {
	if c == nil {
		return StateNone
	}
	hasAccount := c.AccountID != nil && *c.AccountID != ""
	hasAnonymous := c.AnonymousClientID != ""
	switch {
	case hasAccount && hasAnonymous:
		return StateBothBound
	case hasAccount:
		return StateAccountOnly
	case hasAnonymous:
		return StateAnonymousOnly
	default:
		return StateNone
	}
}

// BoundTo reports whether the conversation is owned by accountID.
func (c *Conversation) BoundTo(accountID string) bool {
	return c.AccountID != nil && *c.AccountID == accountID
}

// BoundElsewhere reports whether the conversation already belongs to an account other than accountID.
func (c *Conversation) BoundElsewhere(accountID string) bool {
	return c.AccountID != nil && *c.AccountID != "" && *c.AccountID != accountID
}

// Message is an immutable entry of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewConversation carries the fields of a conversation to create.
type NewConversation struct {
	AnonymousClientID string
	AccountID         *string
	Contact           Contact
}

// NewMessage carries the fields of a message to append.
type NewMessage struct {
	ConversationID string
	Role           Role
	Body           string
	CreatedAt      time.Time
}

// Rebind describes identity fields to overwrite. Nil fields are left unchanged.
type Rebind struct {
	AnonymousClientID *string
	AccountID         *string
	Contact           *Contact
}

// Empty reports whether the rebind changes nothing.
func (r Rebind) Empty() bool {
	return r.AnonymousClientID == nil && r.AccountID == nil && (r.Contact == nil || r.Contact.IsZero())
}

// ConversationSummary is one row of the admin inbox.
type ConversationSummary struct {
	ID                string    `json:"id"`
	AnonymousClientID string    `json:"anonymous_client_id"`
	DisplayName       string    `json:"display_name"`
	LastMessage       string    `json:"last_message"`
	LastMessageRole   Role      `json:"last_message_role,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const displayNameLength = 8

// DisplayName returns the contact name or a truncated anonymous client id.
func DisplayName(c *Conversation) string {
	if c.Contact.Name != nil {
		if name := strings.TrimSpace(*c.Contact.Name); name != "" {
			return name
		}
	}
	anon := c.AnonymousClientID
	if len(anon) > displayNameLength {
		return anon[:displayNameLength]
	}
	return anon
}
