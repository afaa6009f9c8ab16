package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jan-server/services/support-chat-api/internal/config"
	"jan-server/services/support-chat-api/internal/domain"
	"jan-server/services/support-chat-api/internal/domain/chat"
	"jan-server/services/support-chat-api/internal/infrastructure"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
	"jan-server/services/support-chat-api/internal/infrastructure/logger"
	"jan-server/services/support-chat-api/internal/infrastructure/repository/conversation"
)

// session holds a chat service wired straight to the store.
type session struct {
	cfg     *config.Config
	service chat.Service
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		cfg.LogLevel = "warn"
	}
	// Logs go to stderr so json and yaml output stay parseable.
	log := logger.New(cfg).Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return cfg, log, nil
}

// openSession connects the store and, when configured, the live transport
// so deletes also purge channel history.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	fail := func(err error) (*session, error) {
		s.Close()
		return nil, err
	}

	db, closeDB, err := infrastructure.ProvideGormDB(ctx, infrastructure.ProvideDatabaseConfig(cfg), log)
	if err != nil {
		return fail(fmt.Errorf("connect database: %w", err))
	}
	s.closers = append(s.closers, closeDB)

	redisClient, closeRedis, err := infrastructure.ProvideRedisClient(ctx, cfg, log)
	if err != nil {
		return fail(fmt.Errorf("connect redis: %w", err))
	}
	s.closers = append(s.closers, closeRedis)

	transport, closeTransport, err := infrastructure.ProvideTransport(cfg, redisClient, log)
	if err != nil {
		return fail(fmt.Errorf("open live transport: %w", err))
	}
	s.closers = append(s.closers, closeTransport)

	txManager := transaction.NewDatabase(db)
	conversations := conversation.NewConversationGormRepository(txManager)
	messages := conversation.NewMessageGormRepository(txManager)

	directory, err := domain.ProvideDirectory(cfg, conversations, messages, log)
	if err != nil {
		return fail(err)
	}
	engine := domain.ProvideReconciler(cfg, txManager, conversations, messages, directory,
		infrastructure.ProvideLocker(cfg, redisClient, log), nil, infrastructure.ProvideSanitizer(cfg), log)
	adapter, err := domain.ProvideAdapter(cfg, transport, engine, nil, log)
	if err != nil {
		return fail(err)
	}
	s.service = domain.ProvideChatService(engine, directory, adapter, log)
	return s, nil
}

var errNoIdentity = errors.New("an anonymous client id or --account is required")
