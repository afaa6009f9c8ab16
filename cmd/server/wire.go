//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"jan-server/services/support-chat-api/internal/config"
	"jan-server/services/support-chat-api/internal/domain"
	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure"
	"jan-server/services/support-chat-api/internal/infrastructure/database"
	"jan-server/services/support-chat-api/internal/infrastructure/logger"
	"jan-server/services/support-chat-api/internal/infrastructure/telemetry"
	"jan-server/services/support-chat-api/internal/interfaces"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/middlewares"
)

// BuildApplication assembles the support chat service with Wire.
func BuildApplication(ctx context.Context, cfg *config.Config) (*Application, func(), error) {
	wire.Build(
		logger.New,
		infrastructure.InfrastructureProvider,
		wire.Bind(new(chat.Redactor), new(*telemetry.Sanitizer)),
		wire.Bind(new(middlewares.QuerySanitizer), new(*telemetry.Sanitizer)),
		wire.Bind(new(httpserver.ReadinessChecker), new(*database.Pinger)),
		domain.ServiceProvider,
		wire.Bind(new(handlers.LiveFeed), new(*livechat.Adapter)),
		interfaces.InterfacesProvider,
		NewWorkerPool,
		NewApplication,
	)
	return nil, nil, nil
}
