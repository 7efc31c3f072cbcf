package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is named after each registering file (<version>_<name>.go).
var Migrations = migrate.NewMigrations()
