package chat

import (
	"context"
	"time"
)

// ConversationRepository is the session identity store.
// Find* lookups return nil, nil when nothing matches. Unique-constraint
// violations are reported as ErrIdentityConflict.
type ConversationRepository interface {
	FindByAnonymousID(ctx context.Context, anonymousClientID string) (*Conversation, error)
	FindByAccountID(ctx context.Context, accountID string) (*Conversation, error)
	FindByID(ctx context.Context, id string) (*Conversation, error)
	Create(ctx context.Context, params NewConversation) (*Conversation, error)
	Rebind(ctx context.Context, id string, patch Rebind) (*Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Conversation, error)
	// LockForUpdate row-locks the conversations until the surrounding
	// transaction ends. It fails with ErrIdentityConflict when one of them no
	// longer exists.
	LockForUpdate(ctx context.Context, ids ...string) error
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, params NewMessage) (*Message, error)
	AppendBatch(ctx context.Context, conversationID string, messages []NewMessage) error
	ListByConversation(ctx context.Context, conversationID string) ([]Message, error)
	DeleteAllForConversation(ctx context.Context, conversationID string) error
	LatestByConversation(ctx context.Context, conversationIDs []string) (map[string]Message, error)
}

// TxManager runs fn inside one store transaction. Repositories pick the
// transaction up from the context passed to fn.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serialises reconciliation calls touching the same identities.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// NopLocker leaves serialisation to the store's unique constraints.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

// Invalidator drops cached read-side state for conversations.
type Invalidator interface {
	Invalidate(conversationIDs ...string)
}

// LiveChannel mirrors messages to the realtime transport.
type LiveChannel interface {
	Publish(ctx context.Context, anonymousClientID string, msg Message)
	ReplayHistory(ctx context.Context, anonymousClientID string) ([]Message, error)
	Purge(ctx context.Context, anonymousClientID string) error
}

// Observer receives the outcome of every reconciliation call.
type Observer interface {
	ObserveReconcile(result *Result, err error, elapsed time.Duration)
}

// Observers fans one reconciliation out to several observers.
type Observers []Observer

func (o Observers) ObserveReconcile(result *Result, err error, elapsed time.Duration) {
	for _, observer := range o {
		observer.ObserveReconcile(result, err, elapsed)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveReconcile(*Result, error, time.Duration) {}
