package database

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	// registers the Go migrations with goose
	_ "github.com/iliyamo/sports-calendar/internal/database/migrations"
)

// Migrate applies every pending migration.  dir must point at
// internal/database/migrations so goose can match the registered Go
// migrations to their files.
func Migrate(ctx context.Context, db *sql.DB, dir string) error {
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}
