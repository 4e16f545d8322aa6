// Package migrations embeds the session database schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/catalog-session/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
