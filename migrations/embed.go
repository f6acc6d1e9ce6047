// Package migrations embeds the gateway's SQL migration files into the binary.
//
// Importing this package registers the files with the database package, so
// Migrate works without the SQL files present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
