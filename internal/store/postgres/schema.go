package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the engine's tables when they do not exist yet.
// Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db DBTX) error {
	// No arguments, so pgx sends the multi-statement script over the
	// simple protocol.
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
