package chat

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

const (
	MaxBodyLength     = 8000
	MaxIdentityLength = 128
	MaxContactLength  = 255

	// clockSkew bounds how far in the future a client timestamp may be before it is clamped.
	clockSkew = time.Minute
)

var validate = validator.New()

// Event is the closed set of inbound events understood by the Reconciler.
// Implementations are AnonymousEvent and AuthenticatedEvent.
type Event interface {
	content() Content
}

// Content is the message part shared by every event.
type Content struct {
	Body    string
	Role    Role
	SentAt  time.Time
	Contact Contact
}

// AnonymousEvent comes from a caller known only by its anonymous client id.
// LateAccountID is set when an account claim arrived with the event but was not
// authenticated when the event was dispatched.
type AnonymousEvent struct {
	AnonymousClientID string
	LateAccountID     string
	Content           Content
}

func (e AnonymousEvent) content() Content { return e.Content }

// AuthenticatedEvent comes from a caller whose account id was supplied by the identity provider.
type AuthenticatedEvent struct {
	AccountID         string
	AnonymousClientID string
	Content           Content
}

func (e AuthenticatedEvent) content() Content { return e.Content }

// ContentOf returns the message content of an event.
func ContentOf(ev Event) Content {
	return ev.content()
}

// AnonymousIDOf returns the anonymous client id carried by an event, if any.
func AnonymousIDOf(ev Event) string {
	switch e := ev.(type) {
	case AnonymousEvent:
		return e.AnonymousClientID
	case AuthenticatedEvent:
		return e.AnonymousClientID
	}
	return ""
}

// SubmitRequest is the raw, unvalidated shape of an inbound event.
type SubmitRequest struct {
	AnonymousClientID string
	AccountID         string
	Authenticated     bool
	Contact           Contact
	Body              string
	Role              Role
	SentAt            *time.Time
}

// ParseEvent validates a request once at ingress and turns it into an Event.
func ParseEvent(ctx context.Context, req SubmitRequest, now time.Time) (Event, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, invalid(ctx, "body", "message body is required")
	}
	if len(body) > MaxBodyLength {
		return nil, invalid(ctx, "body", "message body is too long")
	}

	role := req.Role
	if role == "" {
		role = RoleVisitor
	}
	if !role.Valid() {
		return nil, invalid(ctx, "role", "role must be VISITOR or OPERATOR")
	}

	anonymousID := strings.TrimSpace(req.AnonymousClientID)
	accountID := strings.TrimSpace(req.AccountID)
	if len(anonymousID) > MaxIdentityLength {
		return nil, invalid(ctx, "anonymous_client_id", "anonymous client id is too long")
	}
	if len(accountID) > MaxIdentityLength {
		return nil, invalid(ctx, "account_id", "account id is too long")
	}

	contact, err := normalizeContact(ctx, req.Contact)
	if err != nil {
		return nil, err
	}

	content := Content{
		Body:    body,
		Role:    role,
		SentAt:  NormalizeTimestamp(req.SentAt, now),
		Contact: contact,
	}

	// Operators address a thread by its anonymous client id; their own
	// account never becomes part of the visitor's identity.
	if role == RoleOperator {
		if anonymousID == "" {
			return nil, invalid(ctx, "anonymous_client_id", "operator replies require the conversation's anonymous client id")
		}
		content.Contact = Contact{}
		return AnonymousEvent{AnonymousClientID: anonymousID, Content: content}, nil
	}

	if req.Authenticated {
		if accountID == "" {
			return nil, invalid(ctx, "account_id", "authenticated caller has no account id")
		}
		return AuthenticatedEvent{AccountID: accountID, AnonymousClientID: anonymousID, Content: content}, nil
	}

	if anonymousID == "" {
		if accountID != "" {
			return nil, invalid(ctx, "anonymous_client_id", "unauthenticated account claims require an anonymous client id")
		}
		return nil, invalid(ctx, "anonymous_client_id", "anonymous client id or account id is required")
	}
	return AnonymousEvent{AnonymousClientID: anonymousID, LateAccountID: accountID, Content: content}, nil
}

// NormalizeTimestamp returns the UTC millisecond timestamp stored for a message.
// A missing timestamp or one too far in the future becomes now.
func NormalizeTimestamp(sentAt *time.Time, now time.Time) time.Time {
	ts := now
	if sentAt != nil && !sentAt.IsZero() && !sentAt.After(now.Add(clockSkew)) {
		ts = *sentAt
	}
	return ts.UTC().Truncate(time.Millisecond)
}

func normalizeContact(ctx context.Context, c Contact) (Contact, error) {
	var out Contact
	var err error
	if out.Name, err = normalizeField(ctx, "contact.name", c.Name, ""); err != nil {
		return Contact{}, err
	}
	if out.Email, err = normalizeField(ctx, "contact.email", c.Email, "email"); err != nil {
		return Contact{}, err
	}
	if out.Phone, err = normalizeField(ctx, "contact.phone", c.Phone, "e164|numeric"); err != nil {
		return Contact{}, err
	}
	return out, nil
}

func normalizeField(ctx context.Context, field string, value *string, rule string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil, nil
	}
	if len(v) > MaxContactLength {
		return nil, invalid(ctx, field, "value is too long")
	}
	if rule != "" {
		if field == "contact.phone" {
			v = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(v)
		}
		if err := validate.Var(v, rule); err != nil {
			return nil, invalid(ctx, field, "value is not well formed")
		}
	}
	return &v, nil
}

func invalid(ctx context.Context, field, message string) error {
	return platformerrors.NewErrorWithContext(
		ctx,
		platformerrors.LayerDomain,
		platformerrors.ErrorTypeValidation,
		message,
		&ValidationError{Field: field, Message: message},
		"chat-event-validation-001",
		map[string]any{"field": field},
	)
}
