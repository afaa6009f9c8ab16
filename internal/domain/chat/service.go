package chat

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

// Service defines the support chat operations exposed to clients and operators.
type Service interface {
	SubmitMessage(ctx context.Context, req SubmitRequest) (*Result, error)
	ListConversations(ctx context.Context) ([]ConversationSummary, error)
	GetHistory(ctx context.Context, anonymousClientID string, accountID *string) ([]Message, error)
	ResolveConversation(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, error)
	DeleteHistory(ctx context.Context, anonymousClientID string, accountID *string) error
}

// DefaultService implements Service on top of the Reconciler.
type DefaultService struct {
	engine    *Reconciler
	directory *Directory
	live      LiveChannel
	log       zerolog.Logger
}

// NewService creates the chat service.
func NewService(engine *Reconciler, directory *Directory, live LiveChannel, log zerolog.Logger) *DefaultService {
	return &DefaultService{
		engine:    engine,
		directory: directory,
		live:      live,
		log:       log.With().Str("component", "chat-service").Logger(),
	}
}

// SubmitMessage validates, reconciles and then mirrors the stored message live.
func (s *DefaultService) SubmitMessage(ctx context.Context, req SubmitRequest) (*Result, error) {
	ev, err := ParseEvent(ctx, req, s.engine.Now())
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Reconcile(ctx, ev)
	if err != nil {
		return nil, err
	}

	s.live.Publish(ctx, result.Conversation.AnonymousClientID, *result.Message)
	return result, nil
}

// ListConversations returns the admin inbox.
func (s *DefaultService) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	return s.directory.List(ctx)
}

// GetHistory returns durable history merged with the transport replay. The
// durable log is authoritative: a failed replay degrades to it. Replayed
// entries of any other conversation are dropped; messages of a conversation
// merged into this one are already in the durable log.
func (s *DefaultService) GetHistory(ctx context.Context, anonymousClientID string, accountID *string) ([]Message, error) {
	conv, durable, err := s.engine.Lookup(ctx, anonymousClientID, accountID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversation history")
	}
	if conv == nil {
		return []Message{}, nil
	}

	replayed, err := s.live.ReplayHistory(ctx, conv.AnonymousClientID)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("transport replay failed, serving durable history")
		replayed = nil
	}
	return MergeHistories(durable, ownedBy(conv.ID, replayed)), nil
}

// ResolveConversation returns the conversation an identity maps to, or nil
// when there is none yet. Live listeners follow its anonymous client id.
func (s *DefaultService) ResolveConversation(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, error) {
	conv, err := s.engine.Resolve(ctx, anonymousClientID, accountID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve conversation")
	}
	return conv, nil
}

func ownedBy(conversationID string, messages []Message) []Message {
	owned := messages[:0]
	for _, m := range messages {
		if m.ConversationID == conversationID {
			owned = append(owned, m)
		}
	}
	return owned
}

// DeleteHistory wipes the messages of the resolved conversation and its transport channel.
func (s *DefaultService) DeleteHistory(ctx context.Context, anonymousClientID string, accountID *string) error {
	conv, err := s.engine.ClearHistory(ctx, anonymousClientID, accountID)
	if err != nil {
		return err
	}
	// Replay would resurface purged messages, so a failed purge is reported;
	// deleting again is safe.
	if err := s.live.Purge(ctx, conv.AnonymousClientID); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("transport history purge failed")
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"messages deleted but live history could not be purged", err, "chat-history-purge-001")
	}
	return nil
}
