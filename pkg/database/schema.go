package database

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// ApplySQLiteSchema creates the registry tables on an embedded SQLite store.
// Every statement is idempotent.
func ApplySQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}
