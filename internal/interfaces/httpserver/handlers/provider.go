package handlers

import (
	"github.com/google/wire"

	"jan-server/services/support-chat-api/internal/config"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat   *ChatHandler
	Admin  *AdminHandler
	Widget *WidgetHandler
}

// NewProvider bundles the handlers.
func NewProvider(chatHandler *ChatHandler, adminHandler *AdminHandler, widgetHandler *WidgetHandler) *Provider {
	return &Provider{
		Chat:   chatHandler,
		Admin:  adminHandler,
		Widget: widgetHandler,
	}
}

// NewWidgetConfig derives websocket settings from the service config.
func NewWidgetConfig(cfg *config.Config) WidgetConfig {
	return WidgetConfig{
		AllowedOrigins: cfg.CORSOrigins,
		PingInterval:   cfg.WebsocketPingInterval,
		ReadLimit:      cfg.WebsocketReadLimit,
		WriteDeadline:  cfg.WebsocketWriteDeadline,
	}
}

var HandlerProvider = wire.NewSet(
	NewChatHandler,
	NewAdminHandler,
	NewWidgetHandler,
	NewWidgetConfig,
	NewProvider,
)
