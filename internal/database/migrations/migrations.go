// Package migrations registers the database schema migrations run at
// startup when auto-migration is enabled.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds all registered migrations.
var Migrations = migrate.NewMigrations()
