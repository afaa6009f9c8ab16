package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jan-server/services/support-chat-api/internal/utils/idgen"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

const tracerName = "jan-server/support-chat-api/chat"

// Outcome names the transition a reconciliation call performed.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeAppended Outcome = "appended"
	OutcomeAdopted  Outcome = "adopted"
	OutcomeRebound  Outcome = "rebound"
	OutcomeMerged   Outcome = "merged"
)

// Transition records the identity state change of the resolved conversation.
type Transition struct {
	From    IdentityState `json:"from"`
	To      IdentityState `json:"to"`
	Outcome Outcome       `json:"outcome"`
}

// Result is the committed outcome of one reconciliation call.
type Result struct {
	Conversation         *Conversation
	Message              *Message
	Transition           Transition
	MergedConversationID string
	MergedMessages       int

	touched []string
}

// Touched returns the ids of every conversation written by the call.
func (r *Result) Touched() []string {
	if r == nil {
		return nil
	}
	return r.touched
}

// Redactor hides personal data before it reaches log lines.
type Redactor interface {
	SanitizeUserID(userID string) string
}

type plainRedactor struct{}

func (plainRedactor) SanitizeUserID(id string) string { return id }

// Reconciler maps inbound events onto exactly one conversation, merging
// identities when needed, and appends the message. Every call is one store
// transaction.
type Reconciler struct {
	tx            TxManager
	conversations ConversationRepository
	messages      MessageRepository
	locker        Locker
	invalidator   Invalidator
	observer      Observer
	redact        Redactor
	log           zerolog.Logger
	tracer        trace.Tracer

	now            func() time.Time
	newAnonymousID func() string
	txTimeout      time.Duration
}

// ReconcilerOption customises a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithLocker(l Locker) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.locker = l
		}
	}
}

func WithInvalidator(inv Invalidator) ReconcilerOption {
	return func(r *Reconciler) {
		if inv != nil {
			r.invalidator = inv
		}
	}
}

func WithObserver(o Observer) ReconcilerOption {
	return func(r *Reconciler) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithRedactor(red Redactor) ReconcilerOption {
	return func(r *Reconciler) {
		if red != nil {
			r.redact = red
		}
	}
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func WithAnonymousIDGenerator(gen func() string) ReconcilerOption {
	return func(r *Reconciler) {
		if gen != nil {
			r.newAnonymousID = gen
		}
	}
}

// WithTxTimeout bounds each transaction; an expired call rolls back and is reported as retryable.
func WithTxTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.txTimeout = d
	}
}

// NewReconciler builds the reconciliation engine.
func NewReconciler(tx TxManager, conversations ConversationRepository, messages MessageRepository, log zerolog.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		tx:            tx,
		conversations: conversations,
		messages:      messages,
		locker:        NopLocker{},
		invalidator:   nopInvalidator{},
		observer:      nopObserver{},
		redact:        plainRedactor{},
		log:           log.With().Str("component", "chat-reconciler").Logger(),
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
		newAnonymousID: func() string {
			return idgen.MustGenerate(idgen.PrefixAnonymous, 24)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the engine clock in UTC.
func (r *Reconciler) Now() time.Time {
	return r.now().UTC()
}

// Reconcile resolves the conversation for ev and appends its message atomically.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (*Result, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "chat.reconcile",
		trace.WithAttributes(attribute.String("chat.event", eventKind(ev))),
	)
	defer span.End()

	unlock, err := r.locker.Lock(ctx, lockKeys(ev)...)
	if err != nil {
		r.log.Warn().Err(err).Msg("identity lock unavailable, relying on store constraints")
		unlock = func() {}
	}
	defer unlock()

	result, err := r.attempt(ctx, ev)
	if errors.Is(err, ErrIdentityConflict) {
		span.AddEvent("identity_conflict.retry")
		r.log.Debug().Err(err).Msg("identity conflict, retrying as lookup")
		result, err = r.attempt(ctx, ev)
	}

	if err != nil {
		err = r.classify(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
	} else {
		r.invalidator.Invalidate(result.touched...)
		span.SetAttributes(
			attribute.String("chat.conversation_id", result.Conversation.ID),
			attribute.String("chat.outcome", string(result.Transition.Outcome)),
			attribute.String("chat.state.from", string(result.Transition.From)),
			attribute.String("chat.state.to", string(result.Transition.To)),
		)
		r.log.Debug().
			Str("conversation_id", result.Conversation.ID).
			Str("outcome", string(result.Transition.Outcome)).
			Str("from", string(result.Transition.From)).
			Str("to", string(result.Transition.To)).
			Msg("message reconciled")
	}

	r.observer.ObserveReconcile(result, err, time.Since(start))
	return result, err
}

// Lookup resolves the conversation owning an identity and returns its durable
// history. The account id takes precedence over the anonymous client id.
// It returns nil, nil, nil when no conversation matches.
func (r *Reconciler) Lookup(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, []Message, error) {
	conv, err := r.resolve(ctx, anonymousClientID, accountID)
	if err != nil || conv == nil {
		return nil, nil, err
	}
	messages, err := r.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// Resolve returns the conversation an identity currently maps to, or nil.
func (r *Reconciler) Resolve(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, error) {
	return r.resolve(ctx, anonymousClientID, accountID)
}

// ClearHistory deletes every message of the resolved conversation and keeps the
// conversation itself.
func (r *Reconciler) ClearHistory(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, error) {
	var conv *Conversation
	err := r.withTx(ctx, func(ctx context.Context) error {
		var err error
		conv, err = r.resolve(ctx, anonymousClientID, accountID)
		if err != nil {
			return err
		}
		if conv == nil {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"no conversation for the supplied identity", ErrConversationNotFound, "chat-history-delete-001")
		}
		if err := r.messages.DeleteAllForConversation(ctx, conv.ID); err != nil {
			return err
		}
		now := r.Now()
		if err := r.conversations.Touch(ctx, conv.ID, now); err != nil {
			return err
		}
		conv.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, r.classify(ctx, err)
	}
	r.invalidator.Invalidate(conv.ID)
	r.log.Info().Str("conversation_id", conv.ID).Msg("conversation history deleted")
	return conv, nil
}

func (r *Reconciler) resolve(ctx context.Context, anonymousClientID string, accountID *string) (*Conversation, error) {
	if accountID != nil && *accountID != "" {
		conv, err := r.conversations.FindByAccountID(ctx, *accountID)
		if err != nil || conv != nil {
			return conv, err
		}
	}
	if anonymousClientID == "" {
		return nil, nil
	}
	conv, err := r.conversations.FindByAnonymousID(ctx, anonymousClientID)
	if err != nil || conv == nil {
		return nil, err
	}
	if accountID != nil && conv.BoundElsewhere(*accountID) {
		return nil, nil
	}
	return conv, nil
}

func (r *Reconciler) attempt(ctx context.Context, ev Event) (*Result, error) {
	var result *Result
	err := r.withTx(ctx, func(ctx context.Context) error {
		var err error
		switch e := ev.(type) {
		case AuthenticatedEvent:
			result, err = r.reconcileAuthenticated(ctx, e)
		case AnonymousEvent:
			result, err = r.reconcileAnonymous(ctx, e)
		default:
			err = fmt.Errorf("unsupported event type %T", ev)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reconciler) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}
	return r.tx.WithinTransaction(ctx, fn)
}

// reconcileAuthenticated handles callers with an account id: attach to the
// account's conversation, or bind the account to a conversation.
func (r *Reconciler) reconcileAuthenticated(ctx context.Context, e AuthenticatedEvent) (*Result, error) {
	conv, err := r.conversations.FindByAccountID(ctx, e.AccountID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return r.attachToAccount(ctx, conv, e.AccountID, e.AnonymousClientID, e.Content)
	}
	return r.bindAccount(ctx, e.AccountID, e.AnonymousClientID, e.Content)
}

// attachToAccount appends to the account's conversation, first rebinding or
// merging a different anonymous client id onto it.
func (r *Reconciler) attachToAccount(ctx context.Context, conv *Conversation, accountID, anonymousClientID string, content Content) (*Result, error) {
	result := &Result{
		Transition: Transition{From: conv.IdentityState(), Outcome: OutcomeAppended},
		touched:    []string{conv.ID},
	}

	var (
		patch    Rebind
		backfill Contact
	)
	if anonymousClientID != "" && anonymousClientID != conv.AnonymousClientID {
		other, err := r.conversations.FindByAnonymousID(ctx, anonymousClientID)
		if err != nil {
			return nil, err
		}
		switch {
		case other == nil:
			patch.AnonymousClientID = &anonymousClientID
			result.Transition.Outcome = OutcomeRebound
		case other.ID == conv.ID:
		case other.BoundElsewhere(accountID):
			r.log.Warn().
				Str("conversation_id", conv.ID).
				Str("owner_conversation_id", other.ID).
				Str("account", r.redact.SanitizeUserID(accountID)).
				Msg("anonymous client id belongs to another account, keeping current binding")
		default:
			copied, err := r.merge(ctx, other, conv)
			if err != nil {
				return nil, err
			}
			backfill, _ = conv.Contact.Missing(other.Contact)
			patch.AnonymousClientID = &anonymousClientID
			result.Transition.Outcome = OutcomeMerged
			result.MergedConversationID = other.ID
			result.MergedMessages = copied
			result.touched = append(result.touched, other.ID)
		}
	}

	if contact := r.contactPatch(conv.Contact, backfill, content); contact != nil {
		patch.Contact = contact
	}
	if !patch.Empty() {
		var err error
		if conv, err = r.conversations.Rebind(ctx, conv.ID, patch); err != nil {
			return nil, err
		}
	}

	return r.finish(ctx, result, conv, content)
}

// bindAccount handles an account without a conversation: adopt the caller's
// anonymous conversation, or start a new one under a fresh anonymous client id.
func (r *Reconciler) bindAccount(ctx context.Context, accountID, anonymousClientID string, content Content) (*Result, error) {
	if anonymousClientID != "" {
		existing, err := r.conversations.FindByAnonymousID(ctx, anonymousClientID)
		if err != nil {
			return nil, err
		}
		if existing != nil && !existing.BoundElsewhere(accountID) {
			result := &Result{
				Transition: Transition{From: existing.IdentityState(), Outcome: OutcomeAdopted},
				touched:    []string{existing.ID},
			}
			patch := Rebind{AccountID: &accountID, Contact: r.contactPatch(existing.Contact, Contact{}, content)}
			conv, err := r.conversations.Rebind(ctx, existing.ID, patch)
			if err != nil {
				return nil, err
			}
			return r.finish(ctx, result, conv, content)
		}
		if existing != nil {
			r.log.Warn().
				Str("conversation_id", existing.ID).
				Str("account", r.redact.SanitizeUserID(accountID)).
				Msg("anonymous client id belongs to another account, starting a separate conversation")
		}
	}

	return r.create(ctx, NewConversation{
		AnonymousClientID: r.newAnonymousID(),
		AccountID:         &accountID,
		Contact:           visitorContact(content),
	}, content)
}

// reconcileAnonymous handles callers known only by their anonymous client id.
func (r *Reconciler) reconcileAnonymous(ctx context.Context, e AnonymousEvent) (*Result, error) {
	conv, err := r.conversations.FindByAnonymousID(ctx, e.AnonymousClientID)
	if err != nil {
		return nil, err
	}

	if conv != nil {
		if e.LateAccountID != "" && !conv.BoundTo(e.LateAccountID) {
			return r.reconcileAuthenticated(ctx, AuthenticatedEvent{
				AccountID:         e.LateAccountID,
				AnonymousClientID: e.AnonymousClientID,
				Content:           e.Content,
			})
		}
		result := &Result{
			Transition: Transition{From: conv.IdentityState(), Outcome: OutcomeAppended},
			touched:    []string{conv.ID},
		}
		if contact := r.contactPatch(conv.Contact, Contact{}, e.Content); contact != nil {
			if conv, err = r.conversations.Rebind(ctx, conv.ID, Rebind{Contact: contact}); err != nil {
				return nil, err
			}
		}
		return r.finish(ctx, result, conv, e.Content)
	}

	if e.Content.Role == RoleOperator {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"operator reply addressed to an unknown conversation", ErrConversationNotFound, "chat-reconcile-operator-001")
	}

	var accountID *string
	if e.LateAccountID != "" {
		owned, err := r.conversations.FindByAccountID(ctx, e.LateAccountID)
		if err != nil {
			return nil, err
		}
		if owned != nil {
			return r.attachToAccount(ctx, owned, e.LateAccountID, e.AnonymousClientID, e.Content)
		}
		accountID = &e.LateAccountID
	}

	return r.create(ctx, NewConversation{
		AnonymousClientID: e.AnonymousClientID,
		AccountID:         accountID,
		Contact:           visitorContact(e.Content),
	}, e.Content)
}

func (r *Reconciler) create(ctx context.Context, params NewConversation, content Content) (*Result, error) {
	conv, err := r.conversations.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Transition: Transition{From: StateNone, Outcome: OutcomeCreated},
		touched:    []string{conv.ID},
	}
	return r.finish(ctx, result, conv, content)
}

// merge re-inserts the source conversation's messages under target in
// chronological order, then deletes the source messages and conversation.
// Both rows stay locked until commit so no append to the source can land
// between the copy and the delete.
func (r *Reconciler) merge(ctx context.Context, source, target *Conversation) (int, error) {
	ctx, span := r.tracer.Start(ctx, "chat.merge", trace.WithAttributes(
		attribute.String("chat.merge.source", source.ID),
		attribute.String("chat.merge.target", target.ID),
	))
	defer span.End()

	if err := r.conversations.LockForUpdate(ctx, source.ID, target.ID); err != nil {
		return 0, err
	}
	history, err := r.messages.ListByConversation(ctx, source.ID)
	if err != nil {
		return 0, err
	}
	SortChronological(history)

	copies := make([]NewMessage, len(history))
	for i, m := range history {
		copies[i] = NewMessage{
			ConversationID: target.ID,
			Role:           m.Role,
			Body:           m.Body,
			CreatedAt:      m.CreatedAt,
		}
	}

	if err := r.messages.AppendBatch(ctx, target.ID, copies); err != nil {
		return 0, err
	}
	if err := r.messages.DeleteAllForConversation(ctx, source.ID); err != nil {
		return 0, err
	}
	if err := r.conversations.Delete(ctx, source.ID); err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("chat.merge.messages", len(copies)))
	r.log.Info().
		Str("source_conversation_id", source.ID).
		Str("target_conversation_id", target.ID).
		Int("messages", len(copies)).
		Msg("conversations merged")
	return len(copies), nil
}

// finish appends under the conversation's row lock. A conversation merged away
// in the meantime surfaces as an identity conflict and is retried as a lookup.
func (r *Reconciler) finish(ctx context.Context, result *Result, conv *Conversation, content Content) (*Result, error) {
	if err := r.conversations.LockForUpdate(ctx, conv.ID); err != nil {
		return nil, err
	}
	msg, err := r.messages.Append(ctx, NewMessage{
		ConversationID: conv.ID,
		Role:           content.Role,
		Body:           content.Body,
		CreatedAt:      content.SentAt,
	})
	if err != nil {
		return nil, err
	}

	now := r.Now()
	if err := r.conversations.Touch(ctx, conv.ID, now); err != nil {
		return nil, err
	}
	conv.UpdatedAt = now

	result.Conversation = conv
	result.Message = msg
	result.Transition.To = conv.IdentityState()
	return result, nil
}

// contactPatch combines back-filled fields with the visitor's changed fields.
// Operator events never change contact details.
func (r *Reconciler) contactPatch(current, backfill Contact, content Content) *Contact {
	patch := backfill
	if content.Role == RoleVisitor {
		if changes, ok := current.Merge(backfill).Changes(content.Contact); ok {
			patch = patch.Merge(changes)
		}
	}
	if patch.IsZero() {
		return nil
	}
	return &patch
}

func (r *Reconciler) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrIdentityConflict):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"identity conflict persisted after retry", err, "chat-reconcile-conflict-001")
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation),
		platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTransactionFailed,
			"reconciliation did not complete in time", err, "chat-reconcile-timeout-001")
	default:
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTransactionFailed,
			"reconciliation transaction failed", err, "chat-reconcile-tx-001")
	}
}

func visitorContact(content Content) Contact {
	if content.Role != RoleVisitor {
		return Contact{}
	}
	return content.Contact
}

func eventKind(ev Event) string {
	switch ev.(type) {
	case AuthenticatedEvent:
		return "authenticated"
	case AnonymousEvent:
		return "anonymous"
	default:
		return "unknown"
	}
}

func lockKeys(ev Event) []string {
	var keys []string
	switch e := ev.(type) {
	case AuthenticatedEvent:
		keys = append(keys, "account:"+e.AccountID)
		if e.AnonymousClientID != "" {
			keys = append(keys, "anon:"+e.AnonymousClientID)
		}
	case AnonymousEvent:
		keys = append(keys, "anon:"+e.AnonymousClientID)
		if e.LateAccountID != "" {
			keys = append(keys, "account:"+e.LateAccountID)
		}
	}
	sort.Strings(keys)
	return keys
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(...string) {}
