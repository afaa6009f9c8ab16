package worker_test

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
	"jan-server/services/support-chat-api/internal/worker"
)

type MockDeliverer struct {
	DeliverFunc func(ctx context.Context, env livechat.Envelope) (*livechat.Delivered, error)
}

func (m *MockDeliverer) Deliver(ctx context.Context, env livechat.Envelope) (*livechat.Delivered, error) {
	if m.DeliverFunc != nil {
		return m.DeliverFunc(ctx, env)
	}
	return &livechat.Delivered{}, nil
}

type chanSource struct {
	ch chan livechat.InboundDelivery
}

func (s *chanSource) Inbound(context.Context) (<-chan livechat.InboundDelivery, error) {
	return s.ch, nil
}

type ackRecorder struct {
	mu    sync.Mutex
	acks  []string
	nacks []string
	done  chan struct{}
}

func (r *ackRecorder) delivery(body string) livechat.InboundDelivery {
	return livechat.InboundDelivery{
		Envelope: livechat.Envelope{Kind: livechat.KindMessage, AnonymousClientID: "c1", Body: body},
		Ack: func() {
			r.mu.Lock()
			r.acks = append(r.acks, body)
			r.mu.Unlock()
			r.done <- struct{}{}
		},
		Nack: func() {
			r.mu.Lock()
			r.nacks = append(r.nacks, body)
			r.mu.Unlock()
			r.done <- struct{}{}
		},
	}
}

func TestPool_AckAndNack(t *testing.T) {
	deliverer := &MockDeliverer{
		DeliverFunc: func(ctx context.Context, env livechat.Envelope) (*livechat.Delivered, error) {
			if _, hasDeadline := ctx.Deadline(); !hasDeadline {
				return nil, errors.New("delivery ran without a task timeout")
			}
			switch env.Body {
			case "stored":
				return &livechat.Delivered{}, nil
			case "duplicate":
				return &livechat.Delivered{Duplicate: true}, nil
			case "invalid":
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "bad", nil, "test-001")
			default:
				return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeTransactionFailed, "db down", errors.New("boom"), "test-002")
			}
		},
	}

	source := &chanSource{ch: make(chan livechat.InboundDelivery)}
	rec := &ackRecorder{done: make(chan struct{}, 4)}
	pool := worker.NewPool(source, deliverer, worker.Config{WorkerCount: 2, TaskTimeout: time.Second}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	bodies := []string{"stored", "duplicate", "invalid", "transient"}
	for _, body := range bodies {
		source.ch <- rec.delivery(body)
	}
	for range bodies {
		select {
		case <-rec.done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery was neither acked nor nacked")
		}
	}
	pool.Stop()

	assert.ElementsMatch(t, []string{"stored", "duplicate", "invalid"}, rec.acks)
	assert.Equal(t, []string{"transient"}, rec.nacks)
}

func TestPool_StoresInboundEventsFromTransport(t *testing.T) {
	_, tx := dbtest.OpenTx(t)
	msgs := conversation.NewMessageGormRepository(tx)
	convs := conversation.NewConversationGormRepository(tx)
	engine := chat.NewReconciler(tx, convs, msgs, zerolog.Nop())

	transport := memory.New("inbound")
	t.Cleanup(func() { _ = transport.Close() })
	adapter, err := livechat.NewAdapter(transport, engine, nil, livechat.Config{}, zerolog.Nop())
	require.NoError(t, err)

	pool := worker.NewPool(transport, adapter, worker.Config{WorkerCount: 2, TaskTimeout: time.Second}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	sent := engine.Now().Add(-time.Second)
	env := livechat.Envelope{Kind: livechat.KindMessage, AnonymousClientID: "widget-1", Body: "hello from the stream", SentAt: sent}
	require.NoError(t, transport.Publish(ctx, "inbound", env))
	// redelivery of the same event must not duplicate it
	require.NoError(t, transport.Publish(ctx, "inbound", env))

	require.Eventually(t, func() bool {
		conv, err := convs.FindByAnonymousID(context.Background(), "widget-1")
		if err != nil || conv == nil {
			return false
		}
		history, err := msgs.ListByConversation(context.Background(), conv.ID)
		return err == nil && len(history) == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	pool.Stop()

	conv, err := convs.FindByAnonymousID(context.Background(), "widget-1")
	require.NoError(t, err)
	history, err := msgs.ListByConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
