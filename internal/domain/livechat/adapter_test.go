package livechat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure/database/dbtest"
	"jan-server/services/support-chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/support-chat-api/internal/infrastructure/transport/memory"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

var now = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)

type countingObserver struct {
	mu         sync.Mutex
	failures   int
	duplicates int
	outcomes   []string
}

func (o *countingObserver) PublishFailed(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *countingObserver) DuplicateDropped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.duplicates++
}

func (o *countingObserver) Delivered(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type fixture struct {
	engine    *chat.Reconciler
	transport livechat.Transport
	observer  *countingObserver
	messages  chat.MessageRepository
}

func newFixture(t *testing.T, transport livechat.Transport) *fixture {
	t.Helper()
	_, tx := dbtest.OpenTx(t)
	msgs := conversation.NewMessageGormRepository(tx)
	engine := chat.NewReconciler(tx, conversation.NewConversationGormRepository(tx), msgs, zerolog.Nop(),
		chat.WithClock(func() time.Time { return now }),
	)
	if transport == nil {
		transport = memory.New("inbound")
	}
	t.Cleanup(func() { _ = transport.Close() })
	return &fixture{engine: engine, transport: transport, observer: &countingObserver{}, messages: msgs}
}

func (f *fixture) adapter(t *testing.T, pageSize int) *livechat.Adapter {
	t.Helper()
	a, err := livechat.NewAdapter(f.transport, f.engine, f.observer, livechat.Config{
		ChannelPrefix:   "test.",
		HistoryPageSize: pageSize,
		PublishTimeout:  time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return a
}

func inbound(anon, body string, at time.Time) livechat.Envelope {
	return livechat.Envelope{Kind: livechat.KindMessage, AnonymousClientID: anon, Body: body, Role: chat.RoleVisitor, SentAt: at}
}

func TestDeliver_IdempotentResubmission(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter(t, 10)
	ctx := context.Background()
	env := inbound("c1", "hello", now.Add(-time.Second))

	first, err := a.Deliver(ctx, env)
	require.NoError(t, err)
	require.False(t, first.Duplicate)
	require.NotNil(t, first.Result)

	second, err := a.Deliver(ctx, env)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// a restarted adapter has no recent-set memory and relies on durable history
	restarted := f.adapter(t, 10)
	third, err := restarted.Deliver(ctx, env)
	require.NoError(t, err)
	assert.True(t, third.Duplicate)

	history, err := f.messages.ListByConversation(ctx, first.Result.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 2, f.observer.duplicates)
}

func TestDeliver_RedeliveryWithoutTimestampIsDuplicate(t *testing.T) {
	_, tx := dbtest.OpenTx(t)
	msgs := conversation.NewMessageGormRepository(tx)
	var (
		mu    sync.Mutex
		clock = now
	)
	engine := chat.NewReconciler(tx, conversation.NewConversationGormRepository(tx), msgs, zerolog.Nop(),
		chat.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(5 * time.Millisecond)
			return clock
		}),
	)
	transport := memory.New("inbound", memory.WithClock(func() time.Time { return now.Add(-time.Second) }))
	t.Cleanup(func() { _ = transport.Close() })
	newAdapter := func() *livechat.Adapter {
		a, err := livechat.NewAdapter(transport, engine, nil, livechat.Config{ChannelPrefix: "test."}, zerolog.Nop())
		require.NoError(t, err)
		return a
	}
	ctx := context.Background()

	deliveries, err := transport.Inbound(ctx)
	require.NoError(t, err)
	require.NoError(t, transport.Publish(ctx, "inbound", livechat.Envelope{Kind: livechat.KindMessage, AnonymousClientID: "c1", Body: "Hello"}))

	next := func() livechat.InboundDelivery {
		select {
		case d := <-deliveries:
			return d
		case <-time.After(2 * time.Second):
			t.Fatal("no inbound delivery")
			return livechat.InboundDelivery{}
		}
	}

	first := next()
	require.False(t, first.Envelope.SentAt.IsZero(), "the transport stamps events sent without a timestamp")
	stored, err := newAdapter().Deliver(ctx, first.Envelope)
	require.NoError(t, err)
	require.False(t, stored.Duplicate)
	first.Nack()

	// the redelivery reaches an adapter without recent-set memory
	second := next()
	assert.Equal(t, first.Envelope.SentAt, second.Envelope.SentAt)
	again, err := newAdapter().Deliver(ctx, second.Envelope)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	second.Ack()

	history, err := msgs.ListByConversation(ctx, stored.Result.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeliver_ConcurrentDuplicatesCollapse(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter(t, 10)
	env := inbound("c1", "double click", now.Add(-time.Second))

	var wg sync.WaitGroup
	results := make([]*livechat.Delivered, 6)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Deliver(context.Background(), env)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	stored := 0
	var conversationID string
	for _, d := range results {
		if !d.Duplicate {
			stored++
			conversationID = d.Result.Conversation.ID
		}
	}
	require.Equal(t, 1, stored)
	history, err := f.messages.ListByConversation(context.Background(), conversationID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeliver_PublishesConfirmedMessageAndErrors(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter(t, 10)
	ctx := context.Background()

	feed, err := a.Subscribe(ctx, "c1")
	require.NoError(t, err)

	d, err := a.Deliver(ctx, inbound("c1", "hi", now.Add(-time.Second)))
	require.NoError(t, err)

	select {
	case env := <-feed:
		assert.Equal(t, livechat.KindMessage, env.Kind)
		assert.Equal(t, d.Result.Message.ID, env.MessageID)
		assert.Equal(t, d.Result.Conversation.ID, env.ConversationID)
		assert.Equal(t, "hi", env.Body)
	case <-time.After(time.Second):
		t.Fatal("confirmed message was not published")
	}

	_, err = a.Deliver(ctx, livechat.Envelope{AnonymousClientID: "c1", Body: "  "})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	select {
	case env := <-feed:
		assert.Equal(t, livechat.KindError, env.Kind)
		assert.NotEmpty(t, env.Error)
	case <-time.After(time.Second):
		t.Fatal("failure notice was not published")
	}
}

func TestReplayHistory_PagesAndSkipsErrors(t *testing.T) {
	f := newFixture(t, nil)
	a := f.adapter(t, 2)
	ctx := context.Background()

	for i, body := range []string{"one", "two", "three"} {
		a.Publish(ctx, "c1", chat.Message{ID: body, Body: body, Role: chat.RoleVisitor, CreatedAt: now.Add(time.Duration(i) * time.Second)})
	}
	require.NoError(t, f.transport.Publish(ctx, a.Channel("c1"), livechat.ErrorEnvelope("c1", "boom", now)))
	a.Publish(ctx, "c1", chat.Message{ID: "four", Body: "four", Role: chat.RoleOperator, CreatedAt: now.Add(4 * time.Second)})

	replayed, err := a.ReplayHistory(ctx, "c1")
	require.NoError(t, err)
	ids := make([]string, len(replayed))
	for i, m := range replayed {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, ids)

	require.NoError(t, a.Purge(ctx, "c1"))
	replayed, err = a.ReplayHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, replayed)
}

type failingTransport struct {
	livechat.Transport
}

func (failingTransport) Publish(context.Context, string, livechat.Envelope) error {
	return errors.New("broker unavailable")
}

func TestPublish_FailureIsCountedNotReturned(t *testing.T) {
	f := newFixture(t, failingTransport{Transport: memory.New("inbound")})
	a := f.adapter(t, 10)

	d, err := a.Deliver(context.Background(), inbound("c1", "still stored", now.Add(-time.Second)))
	require.NoError(t, err)
	require.NotNil(t, d.Result)
	assert.Equal(t, 1, f.observer.failures)

	history, err := f.messages.ListByConversation(context.Background(), d.Result.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
