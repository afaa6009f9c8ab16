package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/config"
	"jan-server/services/support-chat-api/internal/domain"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure"
	"jan-server/services/support-chat-api/internal/infrastructure/database"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
	"jan-server/services/support-chat-api/internal/infrastructure/logger"
	"jan-server/services/support-chat-api/internal/infrastructure/observability"
	"jan-server/services/support-chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver"
	"jan-server/services/support-chat-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/support-chat-api/internal/worker"
)

// @title Support Chat API
// @version 1.0
// @description Website support chat: anonymous and authenticated visitors, identity reconciliation and an operator inbox.
// @contact.name Jan Server Team
// @contact.url https://github.com/janhq/jan-server
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HTTPServer
	workerPool *worker.Pool
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HTTPServer, workerPool *worker.Pool, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		workerPool: workerPool,
		log:        log,
	}
}

// Start runs the inbound workers and serves HTTP until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.workerPool.Start(ctx)
	defer a.workerPool.Stop()
	return a.httpServer.Run(ctx)
}

// NewWorkerPool binds the inbound consumers to the live adapter.
func NewWorkerPool(cfg *config.Config, transport livechat.Transport, adapter *livechat.Adapter, log zerolog.Logger) *worker.Pool {
	return worker.NewPool(transport, adapter, worker.Config{
		WorkerCount: cfg.InboundWorkerCount,
		TaskTimeout: cfg.InboundTaskTimeout,
	}, log)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, closeDB, err := infrastructure.ProvideGormDB(ctx, infrastructure.ProvideDatabaseConfig(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer closeDB()

	redisClient, closeRedis, err := infrastructure.ProvideRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer closeRedis()

	transport, closeTransport, err := infrastructure.ProvideTransport(cfg, redisClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize live transport")
	}
	defer closeTransport()

	authValidator, closeAuth, err := infrastructure.ProvideAuthValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}
	defer closeAuth()

	txManager := transaction.NewDatabase(db)
	conversations := conversation.NewConversationGormRepository(txManager)
	messages := conversation.NewMessageGormRepository(txManager)
	sanitizer := infrastructure.ProvideSanitizer(cfg)

	directory, err := domain.ProvideDirectory(cfg, conversations, messages, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize conversation directory")
	}
	engine := domain.ProvideReconciler(
		cfg,
		txManager,
		conversations,
		messages,
		directory,
		infrastructure.ProvideLocker(cfg, redisClient, log),
		infrastructure.ProvideReconcileObserver(log),
		sanitizer,
		log,
	)
	adapter, err := domain.ProvideAdapter(cfg, transport, engine, infrastructure.ProvideTransportObserver(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize live adapter")
	}
	chatService := domain.ProvideChatService(engine, directory, adapter, log)

	handlerProvider := handlers.NewProvider(
		handlers.NewChatHandler(chatService, log),
		handlers.NewAdminHandler(chatService, log),
		handlers.NewWidgetHandler(chatService, adapter, handlers.NewWidgetConfig(cfg), log),
	)
	httpServer := httpserver.New(cfg, log, handlerProvider, authValidator, sanitizer, database.NewPinger(db))

	app := NewApplication(httpServer, NewWorkerPool(cfg, transport, adapter, log), log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
