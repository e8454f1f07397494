// Package migrations embeds the schema for the MySQL lead store and the
// ClickHouse reports store.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed mysql/*.sql clickhouse/*.sql
var files embed.FS

// Statements returns the statements of every file under dir ("mysql" or
// "clickhouse") in file name order. Neither driver accepts several statements
// in one Exec, so files are split on ";".
func Statements(dir string) ([]string, error) {
	names, err := fs.Glob(files, dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if s := strings.TrimSpace(stmt); s != "" {
				out = append(out, s)
			}
		}
	}
	return out, nil
}
