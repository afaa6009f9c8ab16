package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure/auth"
	"jan-server/services/support-chat-api/internal/infrastructure/metrics"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/middlewares"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/requests"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/responses"
	"jan-server/services/support-chat-api/internal/utils/platformerrors"
)

// Frame types exchanged with the widget.
const (
	FrameHistory = "history"
	FrameMessage = "message"
	FrameAck     = "ack"
	FrameError   = "error"
)

// LiveFeed is the live channel a widget connection listens on.
type LiveFeed interface {
	Subscribe(ctx context.Context, anonymousClientID string) (<-chan livechat.Envelope, error)
}

// WidgetConfig tunes widget connections.
type WidgetConfig struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	ReadLimit      int64
	WriteDeadline  time.Duration
}

// OutboundFrame is a frame sent to the widget. AnonymousClientID names the
// channel the connection listens on once the conversation is known.
type OutboundFrame struct {
	Type              string           `json:"type"`
	Messages          []chat.Message   `json:"messages,omitempty"`
	Message           *chat.Message    `json:"message,omitempty"`
	ConversationID    string           `json:"conversation_id,omitempty"`
	AnonymousClientID string           `json:"anonymous_client_id,omitempty"`
	Transition        *chat.Transition `json:"transition,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// WidgetHandler serves the chat widget websocket.
type WidgetHandler struct {
	service  chat.Service
	feed     LiveFeed
	cfg      WidgetConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWidgetHandler constructs the handler.
func NewWidgetHandler(service chat.Service, feed LiveFeed, cfg WidgetConfig, log zerolog.Logger) *WidgetHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 16 * 1024
	}
	if cfg.WriteDeadline <= 0 {
		cfg.WriteDeadline = 10 * time.Second
	}
	h := &WidgetHandler{
		service: service,
		feed:    feed,
		cfg:     cfg,
		log:     log.With().Str("handler", "widget").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middlewares.OriginAllowed(cfg.AllowedOrigins, origin)
		},
	}
	return h
}

// Connect handles GET /v1/chat/ws
// @Summary Open the widget live connection
// @Description Upgrades to a websocket that replays history, streams new messages and accepts visitor messages
// @Tags Chat
// @Param anonymous_client_id query string true "Anonymous client id"
// @Param access_token query string false "Bearer token"
// @Success 101
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/chat/ws [get]
func (h *WidgetHandler) Connect(c *gin.Context) {
	var q requests.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		responses.HandleBindError(c, err)
		return
	}
	anonymousClientID := strings.TrimSpace(q.AnonymousClientID)
	if anonymousClientID == "" {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "anonymous_client_id is required", "chat-widget-001")
		return
	}
	accountID, _ := auth.AccountID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	metrics.WebsocketOpened()
	defer metrics.WebsocketClosed()

	s := &widgetSession{
		handler:           h,
		conn:              conn,
		anonymousClientID: anonymousClientID,
		accountID:         accountID,
		outbound:          make(chan OutboundFrame, 32),
	}
	s.run(c.Request.Context())
}

type widgetSession struct {
	handler           *WidgetHandler
	conn              *websocket.Conn
	anonymousClientID string
	accountID         string
	outbound          chan OutboundFrame
}

// subscription is the live feed of one channel.
type subscription struct {
	channel string
	feed    <-chan livechat.Envelope
	cancel  context.CancelFunc
}

func (s *widgetSession) account() *string {
	if s.accountID == "" {
		return nil
	}
	return &s.accountID
}

func (s *widgetSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	log := s.handler.log

	// An account's conversation may live under another anonymous client id
	// than the one this browser presented.
	channel := s.anonymousClientID
	conv, err := s.handler.service.ResolveConversation(ctx, s.anonymousClientID, s.account())
	if err != nil {
		log.Error().Err(err).Msg("resolve widget conversation")
		s.writeNow(OutboundFrame{Type: FrameError, Error: "history unavailable"})
		return
	}
	if conv != nil {
		channel = conv.AnonymousClientID
	}

	// Subscribe before loading history so nothing sent in between is missed.
	sub, err := s.subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Msg("subscribe to live channel")
		s.writeNow(OutboundFrame{Type: FrameError, Error: "live channel unavailable"})
		return
	}
	defer func() { sub.cancel() }()

	if err := s.writeHistory(ctx, channel); err != nil {
		return
	}

	go s.read(ctx, cancel)
	s.write(ctx, &sub)
}

func (s *widgetSession) subscribe(ctx context.Context, channel string) (subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	feed, err := s.handler.feed.Subscribe(subCtx, channel)
	if err != nil {
		cancel()
		return subscription{}, err
	}
	return subscription{channel: channel, feed: feed, cancel: cancel}, nil
}

func (s *widgetSession) writeHistory(ctx context.Context, channel string) error {
	history, err := s.handler.service.GetHistory(ctx, s.anonymousClientID, s.account())
	if err != nil {
		s.handler.log.Error().Err(err).Msg("load widget history")
		s.writeNow(OutboundFrame{Type: FrameError, Error: "history unavailable"})
		return err
	}
	return s.writeNow(OutboundFrame{Type: FrameHistory, Messages: history, AnonymousClientID: channel})
}

// read turns widget frames into submissions until the peer goes away.
func (s *widgetSession) read(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	cfg := s.handler.cfg
	s.conn.SetReadLimit(cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * cfg.PingInterval))
	})

	for {
		var frame requests.WidgetFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.handler.log.Debug().Err(err).Msg("widget connection closed")
			}
			return
		}
		if frame.Type != FrameMessage {
			s.send(ctx, OutboundFrame{Type: FrameError, Error: "unsupported frame type"})
			continue
		}

		result, err := s.handler.service.SubmitMessage(ctx, frame.ToDomain(s.anonymousClientID, s.accountID))
		if err != nil {
			s.send(ctx, OutboundFrame{Type: FrameError, Error: frameError(err)})
			continue
		}
		s.send(ctx, OutboundFrame{
			Type:              FrameAck,
			Message:           result.Message,
			ConversationID:    result.Conversation.ID,
			AnonymousClientID: result.Conversation.AnonymousClientID,
			Transition:        &result.Transition,
		})
	}
}

// write is the only writer on the connection.
func (s *widgetSession) write(ctx context.Context, sub *subscription) {
	ticker := time.NewTicker(s.handler.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.handler.cfg.WriteDeadline))
			return
		case frame := <-s.outbound:
			if err := s.writeNow(frame); err != nil {
				return
			}
			// An ack names the channel of the conversation the message
			// landed in; listen there from now on.
			if frame.Type == FrameAck && frame.AnonymousClientID != "" && frame.AnonymousClientID != sub.channel {
				if err := s.move(ctx, sub, frame.AnonymousClientID); err != nil {
					return
				}
			}
		case env, ok := <-sub.feed:
			if !ok {
				return
			}
			if err := s.writeNow(liveFrame(env)); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.handler.cfg.WriteDeadline)); err != nil {
				return
			}
		}
	}
}

// move re-subscribes to channel and replays the history published before the move.
func (s *widgetSession) move(ctx context.Context, sub *subscription, channel string) error {
	next, err := s.subscribe(ctx, channel)
	if err != nil {
		s.handler.log.Error().Err(err).Msg("move widget subscription")
		return s.writeNow(OutboundFrame{Type: FrameError, Error: "live channel unavailable"})
	}
	sub.cancel()
	*sub = next
	return s.writeHistory(ctx, channel)
}

func (s *widgetSession) send(ctx context.Context, frame OutboundFrame) {
	select {
	case s.outbound <- frame:
	case <-ctx.Done():
	}
}

func (s *widgetSession) writeNow(frame OutboundFrame) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.handler.cfg.WriteDeadline))
	return s.conn.WriteJSON(frame)
}

func liveFrame(env livechat.Envelope) OutboundFrame {
	if env.Kind == livechat.KindError {
		return OutboundFrame{Type: FrameError, Error: env.Error}
	}
	msg := env.Message()
	return OutboundFrame{Type: FrameMessage, Message: &msg}
}

func frameError(err error) string {
	if perr := platformerrors.GetPlatformError(err); perr != nil {
		return perr.Message
	}
	return "message could not be delivered"
}
