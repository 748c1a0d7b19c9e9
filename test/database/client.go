// Package database provides migrated test database clients on top of the
// shared testcontainer from test/util.
package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MisreadableMind/word-to-site-ai/pkg/database"
	"github.com/MisreadableMind/word-to-site-ai/test/util"
)

// NewTestClient creates a migrated test database client.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: uses a shared testcontainer. Either way
// the client is scoped to a test-private schema that is dropped when the
// test ends.
func NewTestClient(t *testing.T) *database.Client {
	db := util.SetupTestDatabase(t)

	// Apply the embedded migrations inside the test schema; the
	// search_path on the pool keeps schema_migrations private too.
	err := database.Migrate(db, "test")
	require.NoError(t, err)

	return database.NewClientFromDB(db)
}
