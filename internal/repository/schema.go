package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"hubon-pickup/pkg/errors"
)

//go:embed schema.sql
var schema string

// Execer is the subset of *sql.DB needed to apply the schema.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EnsureSchema creates the gateway's tables when they are missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.WrapDomainError(err, errors.CodeUnavailable, "schema migration failed", "database error")
	}
	return nil
}
