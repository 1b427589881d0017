// Package migrations embeds the schema migrations for each supported driver.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// ForDriver returns the migration files for the named database driver
func ForDriver(driver string) (fs.FS, error) {
	switch driver {
	case "postgres", "sqlite3":
		return fs.Sub(files, driver)
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}
