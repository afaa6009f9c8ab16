// Package dbtest opens migrated SQLite stores for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/support-chat-api/internal/infrastructure/database"
	"jan-server/services/support-chat-api/internal/infrastructure/database/transaction"
)

// Open returns a migrated SQLite database in the test's temp directory.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Config{
		Driver:   database.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "support-chat.db"),
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite, zerolog.Nop()))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// OpenTx returns the transaction manager over a fresh database.
func OpenTx(t testing.TB) (*gorm.DB, *transaction.Database) {
	t.Helper()
	db := Open(t)
	return db, transaction.NewDatabase(db)
}

// FailConversationDeletes makes every delete on the conversations table fail
// with err, for exercising rollback paths.
func FailConversationDeletes(t testing.TB, db *gorm.DB, err error) {
	t.Helper()
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("dbtest:fail_conversation_delete", func(tx *gorm.DB) {
		if tx.Statement.Table == "conversations" {
			_ = tx.AddError(err)
		}
	}))
}
