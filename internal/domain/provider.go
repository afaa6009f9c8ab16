package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/support-chat-api/internal/config"
	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/domain/livechat"
)

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	ProvideDirectory,
	ProvideReconciler,
	wire.Bind(new(livechat.Engine), new(*chat.Reconciler)),
	ProvideAdapter,
	wire.Bind(new(chat.LiveChannel), new(*livechat.Adapter)),
	ProvideChatService,
)

// ProvideDirectory builds the admin inbox.
func ProvideDirectory(cfg *config.Config, conversations chat.ConversationRepository, messages chat.MessageRepository, log zerolog.Logger) (*chat.Directory, error) {
	return chat.NewDirectory(conversations, messages, cfg.DirectoryCache, log)
}

// ProvideReconciler builds the reconciliation engine with its collaborators.
func ProvideReconciler(
	cfg *config.Config,
	tx chat.TxManager,
	conversations chat.ConversationRepository,
	messages chat.MessageRepository,
	directory *chat.Directory,
	locker chat.Locker,
	observer chat.Observer,
	redactor chat.Redactor,
	log zerolog.Logger,
) *chat.Reconciler {
	return chat.NewReconciler(tx, conversations, messages, log,
		chat.WithLocker(locker),
		chat.WithInvalidator(directory),
		chat.WithObserver(observer),
		chat.WithRedactor(redactor),
		chat.WithTxTimeout(cfg.DBTxTimeout),
	)
}

// ProvideAdapter builds the live chat adapter over the transport.
func ProvideAdapter(cfg *config.Config, transport livechat.Transport, engine livechat.Engine, observer livechat.Observer, log zerolog.Logger) (*livechat.Adapter, error) {
	return livechat.NewAdapter(transport, engine, observer, livechat.Config{
		ChannelPrefix:   cfg.ChannelPrefix,
		HistoryPageSize: cfg.HistoryPageSize,
		PublishTimeout:  cfg.PublishTimeout,
		DedupCacheSize:  cfg.DedupCacheSize,
	}, log)
}

// ProvideChatService builds the chat service.
func ProvideChatService(engine *chat.Reconciler, directory *chat.Directory, live chat.LiveChannel, log zerolog.Logger) chat.Service {
	return chat.NewService(engine, directory, live, log)
}
