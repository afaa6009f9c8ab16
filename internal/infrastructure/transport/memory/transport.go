// Package memory is an in-process livechat.Transport for single-node
// development and tests.
package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"jan-server/services/support-chat-api/internal/domain/livechat"
)

const (
	subscriberBuffer = 64
	inboundBuffer    = 256
)

var ErrClosed = errors.New("memory transport closed")

type subscriber struct {
	ch chan livechat.Envelope
}

// Transport keeps channel history in memory and fans out to subscribers.
// Publishing to the inbound topic queues the event for Inbound consumers
// instead of recording it as channel history.
type Transport struct {
	inboundTopic string

	mu          sync.Mutex
	history     map[string][]livechat.Envelope
	subscribers map[string]map[*subscriber]struct{}
	closed      bool

	inbound chan livechat.InboundDelivery
	done    chan struct{}
	now     func() time.Time
}

// Option configures a Transport.
type Option func(*Transport)

// WithClock sets the clock used to stamp inbound events sent without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

func New(inboundTopic string, opts ...Option) *Transport {
	t := &Transport{
		inboundTopic: inboundTopic,
		history:      make(map[string][]livechat.Envelope),
		subscribers:  make(map[string]map[*subscriber]struct{}),
		inbound:      make(chan livechat.InboundDelivery, inboundBuffer),
		done:         make(chan struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Publish(ctx context.Context, channel string, env livechat.Envelope) error {
	if channel == t.inboundTopic && channel != "" {
		// Stamped once here so every redelivery carries the same timestamp.
		if env.SentAt.IsZero() {
			env.SentAt = t.now().UTC().Truncate(time.Millisecond)
		}
		return t.enqueue(ctx, env)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.history[channel] = append(t.history[channel], env)
	for sub := range t.subscribers[channel] {
		select {
		case sub.ch <- env:
		default:
			// slow subscriber; it can recover through history replay
		}
	}
	return nil
}

// History pages through a channel. Cursors are offsets into the channel log.
func (t *Transport) History(_ context.Context, channel, cursor string, limit int) (livechat.HistoryPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return livechat.HistoryPage{}, errors.New("invalid history cursor")
		}
		offset = n
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return livechat.HistoryPage{}, ErrClosed
	}

	entries := t.history[channel]
	if offset >= len(entries) {
		return livechat.HistoryPage{}, nil
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := livechat.HistoryPage{Envelopes: append([]livechat.Envelope(nil), entries[offset:end]...)}
	if end < len(entries) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (t *Transport) Subscribe(ctx context.Context, channel string) (<-chan livechat.Envelope, error) {
	sub := &subscriber{ch: make(chan livechat.Envelope, subscriberBuffer)}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.subscribers[channel] == nil {
		t.subscribers[channel] = make(map[*subscriber]struct{})
	}
	t.subscribers[channel][sub] = struct{}{}
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-t.done:
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subscribers[channel][sub]; ok {
			delete(t.subscribers[channel], sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// Inbound returns the shared inbound queue; concurrent consumers compete for deliveries.
func (t *Transport) Inbound(ctx context.Context) (<-chan livechat.InboundDelivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	return t.inbound, nil
}

func (t *Transport) Purge(_ context.Context, channel string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.history, channel)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	for channel, subs := range t.subscribers {
		for sub := range subs {
			close(sub.ch)
		}
		delete(t.subscribers, channel)
	}
	return nil
}

func (t *Transport) enqueue(ctx context.Context, env livechat.Envelope) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.inbound <- t.delivery(env):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrClosed
	}
}

func (t *Transport) delivery(env livechat.Envelope) livechat.InboundDelivery {
	var once sync.Once
	return livechat.InboundDelivery{
		Envelope: env,
		Ack:      func() { once.Do(func() {}) },
		Nack: func() {
			once.Do(func() {
				go func() {
					select {
					case t.inbound <- t.delivery(env):
					case <-t.done:
					}
				}()
			})
		},
	}
}
