// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-obe/storage/database"
)

// NewDB returns a fresh, migrated sqlite database closed at the end of the test.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(database.MemoryDSN("test_" + uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetLogger(goose.NopLogger())
	require.NoError(t, database.Migrate(db, "up"))
	return db
}
