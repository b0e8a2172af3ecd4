// Package dbtest provides an isolated, migrated database and record
// factories for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/monocle-dev/staffing/db"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ConnectForTests opens a fresh in-memory sqlite database with foreign keys
// enforced and the schema migrated. Each call gets its own database.
func ConnectForTests(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString()),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)

	// A shared-cache memory database lives as long as one connection does.
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		require.NoError(t, sqlDB.Close())
	})

	require.NoError(t, db.Migrate(conn))

	return conn
}
