package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
)

// fakeFeed hands out one buffered channel per anonymous client id.
type fakeFeed struct {
	mu         sync.Mutex
	channels   map[string]chan livechat.Envelope
	subscribed chan string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{channels: make(map[string]chan livechat.Envelope), subscribed: make(chan string, 4)}
}

func (f *fakeFeed) channel(anonymousClientID string) chan livechat.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[anonymousClientID]
	if !ok {
		ch = make(chan livechat.Envelope, 1)
		f.channels[anonymousClientID] = ch
	}
	return ch
}

func (f *fakeFeed) Subscribe(ctx context.Context, anonymousClientID string) (<-chan livechat.Envelope, error) {
	f.subscribed <- anonymousClientID
	return f.channel(anonymousClientID), nil
}

func dialWidget(t *testing.T, h *handlers.WidgetHandler, query string) *websocket.Conn {
	t.Helper()
	return dialWidgetAs(t, h, "", query)
}

func dialWidgetAs(t *testing.T, h *handlers.WidgetHandler, accountID, query string) *websocket.Conn {
	t.Helper()
	router := gin.New()
	router.Use(withAccount(accountID))
	router.GET("/v1/chat/ws", h.Connect)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) handlers.OutboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame handlers.OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWidgetHandler_HistoryAckAndLiveMessages(t *testing.T) {
	submitted := make(chan chat.SubmitRequest, 1)
	svc := &MockService{
		GetHistoryFunc: func(ctx context.Context, anonymousClientID string, accountID *string) ([]chat.Message, error) {
			return []chat.Message{{ID: "msg_0", Role: chat.RoleOperator, Body: "welcome back"}}, nil
		},
		SubmitMessageFunc: func(ctx context.Context, req chat.SubmitRequest) (*chat.Result, error) {
			submitted <- req
			return storedResult(req), nil
		},
	}
	feed := newFakeFeed()
	h := handlers.NewWidgetHandler(svc, feed, handlers.WidgetConfig{}, zerolog.Nop())

	conn := dialWidget(t, h, "?anonymous_client_id=anon_w")
	assert.Equal(t, "anon_w", <-feed.subscribed)

	history := readFrame(t, conn)
	assert.Equal(t, handlers.FrameHistory, history.Type)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "welcome back", history.Messages[0].Body)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "body": "is anyone there?"}))
	ack := readFrame(t, conn)
	assert.Equal(t, handlers.FrameAck, ack.Type)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "is anyone there?", ack.Message.Body)
	assert.Equal(t, "conv_1", ack.ConversationID)
	assert.Equal(t, "anon_w", ack.AnonymousClientID)
	req := <-submitted
	assert.Equal(t, "anon_w", req.AnonymousClientID)
	assert.False(t, req.Authenticated)

	feed.channel("anon_w") <- livechat.Envelope{Kind: livechat.KindMessage, MessageID: "msg_2", Role: chat.RoleOperator, Body: "yes, hi!", SentAt: time.Now()}
	live := readFrame(t, conn)
	assert.Equal(t, handlers.FrameMessage, live.Type)
	require.NotNil(t, live.Message)
	assert.Equal(t, "msg_2", live.Message.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "typing"}))
	unsupported := readFrame(t, conn)
	assert.Equal(t, handlers.FrameError, unsupported.Type)
}

func TestWidgetHandler_FollowsConversationChannel(t *testing.T) {
	var mu sync.Mutex
	var conv *chat.Conversation
	svc := &MockService{
		ResolveFunc: func(ctx context.Context, anonymousClientID string, accountID *string) (*chat.Conversation, error) {
			mu.Lock()
			defer mu.Unlock()
			return conv, nil
		},
		SubmitMessageFunc: func(ctx context.Context, req chat.SubmitRequest) (*chat.Result, error) {
			// an account without a conversation gets a fresh anonymous id
			result := storedResult(req)
			result.Conversation.AnonymousClientID = "anon_fresh"
			mu.Lock()
			conv = result.Conversation
			mu.Unlock()
			return result, nil
		},
	}
	feed := newFakeFeed()
	h := handlers.NewWidgetHandler(svc, feed, handlers.WidgetConfig{}, zerolog.Nop())

	conn := dialWidgetAs(t, h, "u1", "?anonymous_client_id=c-new")
	assert.Equal(t, "c-new", <-feed.subscribed)
	first := readFrame(t, conn)
	assert.Equal(t, handlers.FrameHistory, first.Type)
	assert.Equal(t, "c-new", first.AnonymousClientID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "body": "hi"}))
	ack := readFrame(t, conn)
	assert.Equal(t, handlers.FrameAck, ack.Type)
	assert.Equal(t, "anon_fresh", ack.AnonymousClientID)

	assert.Equal(t, "anon_fresh", <-feed.subscribed)
	replay := readFrame(t, conn)
	assert.Equal(t, handlers.FrameHistory, replay.Type)
	assert.Equal(t, "anon_fresh", replay.AnonymousClientID)

	feed.channel("anon_fresh") <- livechat.Envelope{Kind: livechat.KindMessage, MessageID: "msg_op", Role: chat.RoleOperator, Body: "how can I help?", SentAt: time.Now()}
	reply := readFrame(t, conn)
	assert.Equal(t, handlers.FrameMessage, reply.Type)
	require.NotNil(t, reply.Message)
	assert.Equal(t, "msg_op", reply.Message.ID)

	// a later connection goes straight to the conversation's channel
	again := dialWidgetAs(t, h, "u1", "?anonymous_client_id=c-new")
	assert.Equal(t, "anon_fresh", <-feed.subscribed)
	assert.Equal(t, "anon_fresh", readFrame(t, again).AnonymousClientID)
}

func TestWidgetHandler_RequiresAnonymousID(t *testing.T) {
	feed := newFakeFeed()
	h := handlers.NewWidgetHandler(&MockService{}, feed, handlers.WidgetConfig{}, zerolog.Nop())

	router := gin.New()
	router.GET("/v1/chat/ws", h.Connect)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWidgetHandler_RejectsForeignOrigin(t *testing.T) {
	feed := newFakeFeed()
	h := handlers.NewWidgetHandler(&MockService{}, feed, handlers.WidgetConfig{AllowedOrigins: []string{"https://shop.example"}}, zerolog.Nop())

	router := gin.New()
	router.GET("/v1/chat/ws", h.Connect)
	srv := httptest.NewServer(router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws?anonymous_client_id=anon_w"
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
