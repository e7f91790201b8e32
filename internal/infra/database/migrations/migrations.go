// Package migrations holds the schema migrations, applied in file name order.
package migrations

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations holds all database migrations.
var Migrations = migrate.NewMigrations()
