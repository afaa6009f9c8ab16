// Package redisstream implements livechat.Transport on Redis Streams through
// watermill. Each channel is one stream; history replay reads the stream
// directly with XRANGE.
package redisstream

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/domain/livechat"
)

// Config names the inbound stream and the consumer group reading it.
type Config struct {
	InboundTopic  string
	ConsumerGroup string
	Consumer      string
}

// Transport is a Redis Streams backed livechat.Transport.
type Transport struct {
	client    redis.UniversalClient
	publisher message.Publisher
	fanout    message.Subscriber
	marshaler rstream.DefaultMarshallerUnmarshaller
	cfg       Config
	log       zerolog.Logger

	mu      sync.Mutex
	inbound []message.Subscriber
	closed  bool
}

// New builds the publisher and the fan-out subscriber. The client stays owned by the caller.
func New(client redis.UniversalClient, cfg Config, log zerolog.Logger) (*Transport, error) {
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "support-chat-api"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "support-chat-api-" + uuid.NewString()
	}

	logger := newWatermillLogger(log)
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}

	// No consumer group: every subscriber sees every message on the channel.
	fanout, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:       client,
		Unmarshaller: marshaler,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return &Transport{
		client:    client,
		publisher: pub,
		fanout:    fanout,
		marshaler: marshaler,
		cfg:       cfg,
		log:       log.With().Str("component", "redisstream-transport").Logger(),
	}, nil
}

// Publish appends env to the channel's stream. Inbound events without a
// timestamp are stamped here so redeliveries from the consumer group carry
// the same one.
func (t *Transport) Publish(ctx context.Context, channel string, env livechat.Envelope) error {
	if channel == t.cfg.InboundTopic && env.SentAt.IsZero() {
		env.SentAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate message id: %w", err)
	}
	msg := message.NewMessage(id.String(), payload)
	msg.SetContext(ctx)
	if err := t.publisher.Publish(channel, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// History reads one page with XRANGE. Cursors are exclusive stream ids.
func (t *Transport) History(ctx context.Context, channel, cursor string, limit int) (livechat.HistoryPage, error) {
	start := "-"
	if cursor != "" {
		start = cursor
	}
	entries, err := t.client.XRangeN(ctx, channel, start, "+", int64(limit)).Result()
	if err != nil {
		return livechat.HistoryPage{}, fmt.Errorf("read history of %s: %w", channel, err)
	}

	page := livechat.HistoryPage{Envelopes: make([]livechat.Envelope, 0, len(entries))}
	for _, entry := range entries {
		env, err := t.decodeEntry(entry)
		if err != nil {
			t.log.Warn().Err(err).Str("channel", channel).Str("entry_id", entry.ID).Msg("skipping undecodable history entry")
			continue
		}
		page.Envelopes = append(page.Envelopes, env)
	}
	if limit > 0 && len(entries) == limit {
		page.Next = "(" + entries[len(entries)-1].ID
	}
	return page, nil
}

func (t *Transport) Subscribe(ctx context.Context, channel string) (<-chan livechat.Envelope, error) {
	messages, err := t.fanout.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	out := make(chan livechat.Envelope, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			env, err := decodePayload(msg.Payload)
			msg.Ack()
			if err != nil {
				t.log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable envelope")
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Inbound joins the consumer group on the inbound stream. Each call creates
// one more competing consumer.
func (t *Transport) Inbound(ctx context.Context) (<-chan livechat.InboundDelivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errors.New("transport closed")
	}

	if err := t.ensureGroup(ctx); err != nil {
		return nil, err
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        t.client,
		Unmarshaller:  t.marshaler,
		ConsumerGroup: t.cfg.ConsumerGroup,
		Consumer:      fmt.Sprintf("%s-%d", t.cfg.Consumer, len(t.inbound)),
	}, newWatermillLogger(t.log))
	if err != nil {
		return nil, fmt.Errorf("create inbound subscriber: %w", err)
	}
	messages, err := sub.Subscribe(ctx, t.cfg.InboundTopic)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", t.cfg.InboundTopic, err)
	}
	t.inbound = append(t.inbound, sub)

	out := make(chan livechat.InboundDelivery)
	go func() {
		defer close(out)
		for msg := range messages {
			env, err := decodePayload(msg.Payload)
			if err != nil {
				t.log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("acking undecodable inbound event")
				msg.Ack()
				continue
			}
			if env.SentAt.IsZero() {
				// written by another producer; fall back to the publish time in the message id
				if at, ok := publishedAt(msg.UUID); ok {
					env.SentAt = at
				}
			}
			delivery := livechat.InboundDelivery{
				Envelope: env,
				Ack:      func() { msg.Ack() },
				Nack:     func() { msg.Nack() },
			}
			select {
			case out <- delivery:
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (t *Transport) Purge(ctx context.Context, channel string) error {
	if err := t.client.Del(ctx, channel).Err(); err != nil {
		return fmt.Errorf("purge %s: %w", channel, err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, sub := range t.inbound {
		errs = append(errs, sub.Close())
	}
	errs = append(errs, t.fanout.Close(), t.publisher.Close())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close redis stream transport: %w", err)
	}
	return nil
}

// ensureGroup creates the inbound consumer group from the start of the stream
// so events queued before the first worker starts are still consumed.
func (t *Transport) ensureGroup(ctx context.Context) error {
	err := t.client.XGroupCreateMkStream(ctx, t.cfg.InboundTopic, t.cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", t.cfg.ConsumerGroup, err)
	}
	return nil
}

func (t *Transport) decodeEntry(entry redis.XMessage) (livechat.Envelope, error) {
	msg, err := t.marshaler.Unmarshal(entry.Values)
	if err != nil {
		return livechat.Envelope{}, err
	}
	return decodePayload(msg.Payload)
}

func decodePayload(payload []byte) (livechat.Envelope, error) {
	var env livechat.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return livechat.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// publishedAt extracts the millisecond timestamp of a version 7 message id.
func publishedAt(messageUUID string) (time.Time, bool) {
	id, err := uuid.Parse(messageUUID)
	if err != nil || id.Version() != 7 {
		return time.Time{}, false
	}
	var ms [8]byte
	copy(ms[2:], id[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(ms[:]))).UTC(), true
}
