// Package migrations embeds the PostgreSQL schema applied by hostelctl migrate.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// Files holds every migration script.
//
//go:embed *.sql
var Files embed.FS

// Names returns the migration file names in application order.
func Names() ([]string, error) {
	entries, err := fs.ReadDir(Files, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
