// Package migrations carries the sighting store schema inside the binary.
// Import it for its side effect before calling (*database.DB).Migrate.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-enocean/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.MigrationsFS, database.MigrationsDir = schema, "."
}
