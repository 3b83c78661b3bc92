// Package testutil provides shared setup for registry tests.
package testutil

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
)

// NewTestDB opens an in-memory SQLite registry store with the schema applied.
// The store is closed when the test ends.
func NewTestDB(t testing.TB) database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Dialect: database.DialectSQLite,
		DSN:     ":memory:",
	}, NewLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// NewLogger returns a logger that discards everything.
func NewLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
