package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityConflict reports a uniqueness violation on an anonymous client id or account id.
	ErrIdentityConflict = errors.New("identity conflict")
	// ErrTransportDelivery reports a failed publish after the message was durably stored.
	ErrTransportDelivery = errors.New("transport delivery failed")
	// ErrConversationNotFound reports that no conversation matches the supplied identity.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ValidationError is a field-level rejection of a malformed event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
