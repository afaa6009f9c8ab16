package livechat

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

const (
	defaultChannelPrefix   = "support-chat.channel."
	defaultHistoryPageSize = 100
	defaultPublishTimeout  = 3 * time.Second
	defaultDedupCacheSize  = 4096
)

// Engine is the reconciliation side the adapter feeds.
type Engine interface {
	Now() time.Time
	Reconcile(ctx context.Context, ev chat.Event) (*chat.Result, error)
	Lookup(ctx context.Context, anonymousClientID string, accountID *string) (*chat.Conversation, []chat.Message, error)
}

// Observer receives transport-side counters.
type Observer interface {
	PublishFailed(channel string)
	DuplicateDropped()
	Delivered(outcome string)
}

type nopObserver struct{}

func (nopObserver) PublishFailed(string) {}
func (nopObserver) DuplicateDropped()    {}
func (nopObserver) Delivered(string)     {}

// Config tunes the adapter.
type Config struct {
	ChannelPrefix   string
	HistoryPageSize int
	PublishTimeout  time.Duration
	DedupCacheSize  int
}

// Delivered reports what happened to one inbound event.
type Delivered struct {
	Result    *chat.Result
	Duplicate bool
}

// Adapter bridges the chat engine and the publish/subscribe transport. It
// implements chat.LiveChannel.
type Adapter struct {
	transport Transport
	engine    Engine
	observer  Observer
	cfg       Config
	seen      *lru.Cache
	flight    singleflight.Group
	tracer    trace.Tracer
	log       zerolog.Logger
}

// NewAdapter creates the live transport adapter.
func NewAdapter(transport Transport, engine Engine, observer Observer, cfg Config, log zerolog.Logger) (*Adapter, error) {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = defaultChannelPrefix
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = defaultHistoryPageSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.DedupCacheSize <= 0 {
		cfg.DedupCacheSize = defaultDedupCacheSize
	}
	if observer == nil {
		observer = nopObserver{}
	}
	seen, err := lru.New(cfg.DedupCacheSize)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		transport: transport,
		engine:    engine,
		observer:  observer,
		cfg:       cfg,
		seen:      seen,
		tracer:    otel.Tracer("jan-server/support-chat-api/livechat"),
		log:       log.With().Str("component", "livechat-adapter").Logger(),
	}, nil
}

// Channel returns the transport channel of an anonymous client id.
func (a *Adapter) Channel(anonymousClientID string) string {
	return a.cfg.ChannelPrefix + anonymousClientID
}

// Publish mirrors a stored message to the channel. Failures are logged and
// counted but never returned: the stored message is authoritative.
func (a *Adapter) Publish(ctx context.Context, anonymousClientID string, msg chat.Message) {
	a.publish(ctx, anonymousClientID, MessageEnvelope(anonymousClientID, msg))
}

func (a *Adapter) publish(ctx context.Context, anonymousClientID string, env Envelope) {
	channel := a.Channel(anonymousClientID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.PublishTimeout)
	defer cancel()

	if err := a.transport.Publish(ctx, channel, env); err != nil {
		a.observer.PublishFailed(channel)
		platformerrors.LogError(a.log, platformerrors.NewErrorWithContext(
			ctx,
			platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal,
			"live publish failed",
			errors.Join(chat.ErrTransportDelivery, err),
			"livechat-publish-001",
			map[string]any{"channel": channel, "kind": string(env.Kind)},
		))
	}
}

// ReplayHistory reads the whole channel history in delivery order, skipping
// failure notices. It never runs inside a store transaction.
func (a *Adapter) ReplayHistory(ctx context.Context, anonymousClientID string) ([]chat.Message, error) {
	channel := a.Channel(anonymousClientID)
	ctx, span := a.tracer.Start(ctx, "livechat.replay", trace.WithAttributes(attribute.String("livechat.channel", channel)))
	defer span.End()

	var (
		messages []chat.Message
		cursor   string
		pages    int
	)
	for {
		page, err := a.transport.History(ctx, channel, cursor, a.cfg.HistoryPageSize)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "history read failed")
			return nil, err
		}
		pages++
		for _, env := range page.Envelopes {
			if env.Kind != KindMessage {
				continue
			}
			messages = append(messages, env.Message())
		}
		if page.Next == "" || len(page.Envelopes) == 0 {
			break
		}
		cursor = page.Next
	}

	span.SetAttributes(attribute.Int("livechat.pages", pages), attribute.Int("livechat.messages", len(messages)))
	return messages, nil
}

// Subscribe returns the live feed of an anonymous client id's channel.
func (a *Adapter) Subscribe(ctx context.Context, anonymousClientID string) (<-chan Envelope, error) {
	return a.transport.Subscribe(ctx, a.Channel(anonymousClientID))
}

// Purge drops the channel history.
func (a *Adapter) Purge(ctx context.Context, anonymousClientID string) error {
	return a.transport.Purge(ctx, a.Channel(anonymousClientID))
}

// Deliver reconciles one inbound transport event. Redelivered events with the
// same body and millisecond timestamp are recognised and reported as duplicates.
func (a *Adapter) Deliver(ctx context.Context, env Envelope) (*Delivered, error) {
	ctx, span := a.tracer.Start(ctx, "livechat.deliver")
	defer span.End()

	ev, err := chat.ParseEvent(ctx, env.SubmitRequest(), a.engine.Now())
	if err != nil {
		a.observer.Delivered("invalid")
		a.notifySender(ctx, env.AnonymousClientID, err)
		return nil, err
	}

	content := chat.ContentOf(ev)
	key := dedupScope(ev) + "\x00" + chat.DedupKey(content.Body, content.SentAt)

	executed := false
	v, err, _ := a.flight.Do(key, func() (any, error) {
		executed = true
		if a.seen.Contains(key) {
			return nil, nil
		}
		stored, err := a.alreadyStored(ctx, ev, content)
		if err != nil {
			return nil, err
		}
		if stored {
			a.seen.Add(key, struct{}{})
			return nil, nil
		}
		result, err := a.engine.Reconcile(ctx, ev)
		if err != nil {
			return nil, err
		}
		a.seen.Add(key, struct{}{})
		return result, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deliver failed")
		if executed {
			a.observer.Delivered("failed")
			a.notifySender(ctx, chat.AnonymousIDOf(ev), err)
		}
		return nil, err
	}

	result, _ := v.(*chat.Result)
	if !executed || result == nil {
		a.observer.DuplicateDropped()
		a.observer.Delivered("duplicate")
		span.SetAttributes(attribute.Bool("livechat.duplicate", true))
		return &Delivered{Duplicate: true}, nil
	}

	a.Publish(ctx, result.Conversation.AnonymousClientID, *result.Message)
	a.observer.Delivered(string(result.Transition.Outcome))
	span.SetAttributes(attribute.String("chat.conversation_id", result.Conversation.ID))
	return &Delivered{Result: result}, nil
}

// alreadyStored reports whether the resolved conversation already holds a
// message with the same body and timestamp.
func (a *Adapter) alreadyStored(ctx context.Context, ev chat.Event, content chat.Content) (bool, error) {
	anonymousID, accountID := identityOf(ev)
	conv, history, err := a.engine.Lookup(ctx, anonymousID, accountID)
	if err != nil || conv == nil {
		return false, err
	}
	want := chat.DedupKey(content.Body, content.SentAt)
	for _, m := range history {
		if chat.DedupKey(m.Body, m.CreatedAt) == want {
			return true, nil
		}
	}
	return false, nil
}

func (a *Adapter) notifySender(ctx context.Context, anonymousClientID string, cause error) {
	if anonymousClientID == "" {
		return
	}
	reason := "message could not be delivered"
	if perr := platformerrors.GetPlatformError(cause); perr != nil {
		reason = perr.Message
	}
	a.publish(ctx, anonymousClientID, ErrorEnvelope(anonymousClientID, reason, a.engine.Now()))
}

func identityOf(ev chat.Event) (string, *string) {
	switch e := ev.(type) {
	case chat.AuthenticatedEvent:
		account := e.AccountID
		return e.AnonymousClientID, &account
	case chat.AnonymousEvent:
		if e.LateAccountID != "" {
			account := e.LateAccountID
			return e.AnonymousClientID, &account
		}
		return e.AnonymousClientID, nil
	}
	return "", nil
}

func dedupScope(ev chat.Event) string {
	anonymousID, accountID := identityOf(ev)
	scope := "anon:" + anonymousID
	if accountID != nil {
		scope += "|account:" + *accountID
	}
	return scope + "|role:" + string(chat.ContentOf(ev).Role)
}
