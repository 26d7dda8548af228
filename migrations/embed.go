// Package migrations embeds the SQL schema for capture history.
package migrations

import (
	"embed"

	"github.com/nerrad567/lightspeed-asi/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.MigrationsFS = files
	database.MigrationsDir = "."
}
