package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/kozaktomas/pinalbum/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending migrations automatically on startup
func (p *Pool) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	return database.Migrate(ctx, p.db, sub, database.DialectPostgres)
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return database.MigrationsApplied(ctx, p.db)
}
