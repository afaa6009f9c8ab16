package infrastructure

import (
	"context"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/support-chat-api/internal/config"
	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
	"jan-server/services/support-chat-api/internal/infrastructure/auth"
	"jan-server/services/support-chat-api/internal/infrastructure/database"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
	"jan-server/services/support-chat-api/internal/infrastructure/lock"
	"jan-server/services/support-chat-api/internal/infrastructure/metrics"
	"jan-server/services/support-chat-api/internal/infrastructure/observability"
	"jan-server/services/support-chat-api/internal/infrastructure/redisclient"
	"jan-server/services/support-chat-api/internal/infrastructure/repository/conversation"
	"jan-server/services/support-chat-api/internal/infrastructure/telemetry"
	"jan-server/services/support-chat-api/internal/infrastructure/transport/memory"
	"jan-server/services/support-chat-api/internal/infrastructure/transport/redisstream"
)

// InfrastructureProvider provides all infrastructure dependencies.
var InfrastructureProvider = wire.NewSet(
	ProvideDatabaseConfig,
	ProvideGormDB,
	transaction.NewDatabase,
	wire.Bind(new(chat.TxManager), new(*transaction.Database)),
	conversation.NewConversationGormRepository,
	wire.Bind(new(chat.ConversationRepository), new(*conversation.ConversationGormRepository)),
	conversation.NewMessageGormRepository,
	wire.Bind(new(chat.MessageRepository), new(*conversation.MessageGormRepository)),
	database.NewPinger,
	ProvideRedisClient,
	ProvideTransport,
	ProvideLocker,
	ProvideSanitizer,
	ProvideReconcileObserver,
	ProvideTransportObserver,
	ProvideAuthValidator,
)

// ProvideDatabaseConfig maps the service config onto the connection settings.
func ProvideDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

// ProvideGormDB connects and migrates the conversation store.
func ProvideGormDB(ctx context.Context, dbCfg database.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db, dbCfg.Driver, log); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}
	return db, cleanup, nil
}

// ProvideRedisClient connects to redis when it is configured; otherwise it
// returns nil and the service runs single-instance.
func ProvideRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (redis.UniversalClient, func(), error) {
	if !cfg.RedisEnabled() {
		return nil, func() {}, nil
	}
	client, err := redisclient.New(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("close redis client")
		}
	}
	return client, cleanup, nil
}

// ProvideTransport selects redis streams when redis is available and the
// in-process transport otherwise.
func ProvideTransport(cfg *config.Config, client redis.UniversalClient, log zerolog.Logger) (livechat.Transport, func(), error) {
	var (
		transport livechat.Transport
		err       error
	)
	if client != nil {
		transport, err = redisstream.New(client, redisstream.Config{
			InboundTopic:  cfg.InboundTopic,
			ConsumerGroup: cfg.ConsumerGroup,
			Consumer:      cfg.ConsumerName,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("transport", "redis-stream").Msg("live transport ready")
	} else {
		transport = memory.New(cfg.InboundTopic)
		log.Info().Str("transport", "memory").Msg("live transport ready")
	}
	cleanup := func() {
		if err := transport.Close(); err != nil {
			log.Error().Err(err).Msg("close live transport")
		}
	}
	return transport, cleanup, nil
}

// ProvideLocker returns a distributed locker when redis locking is enabled.
// A nil locker leaves serialisation to the store's unique constraints.
func ProvideLocker(cfg *config.Config, client redis.UniversalClient, log zerolog.Logger) chat.Locker {
	if client == nil || !cfg.LockEnabled {
		return nil
	}
	return lock.NewRedisLocker(client, lock.Config{
		Prefix: cfg.LockKeyPrefix,
		Expiry: cfg.LockExpiry,
		Tries:  cfg.LockTries,
	}, log)
}

// ProvideSanitizer builds the PII sanitizer used for logs.
func ProvideSanitizer(cfg *config.Config) *telemetry.Sanitizer {
	return telemetry.NewSanitizer(telemetry.PIILevel(cfg.PIILevel), cfg.PIISalt)
}

// ProvideReconcileObserver records reconciliations on prometheus and on the
// OpenTelemetry meter exported over OTLP.
func ProvideReconcileObserver(log zerolog.Logger) chat.Observer {
	prom := metrics.NewReconcileObserver()
	instrumenter, err := observability.NewReconcileInstrumenter(nil)
	if err != nil {
		log.Warn().Err(err).Msg("otel reconcile instruments unavailable")
		return prom
	}
	return chat.Observers{prom, instrumenter}
}

// ProvideTransportObserver returns the prometheus transport observer.
func ProvideTransportObserver(cfg *config.Config) livechat.Observer {
	return metrics.NewTransportObserver(cfg.ChannelPrefix)
}

// ProvideAuthValidator initializes JWT validation.
func ProvideAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, func(), error) {
	validator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return validator, validator.Close, nil
}
