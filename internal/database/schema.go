package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed schema/*.surql
var schemaFS embed.FS

// Migration is one schema file.
type Migration struct {
	Name string
	SQL  string
}

// Migrations returns the embedded schema files in apply order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("reading schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".surql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(schemaFS, "schema/"+name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(content)})
	}
	return migrations, nil
}

// Migrate applies every schema file. The statements are idempotent, so
// re-running is safe.
func Migrate(ctx context.Context, db Database) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if err := db.Execute(ctx, mig.SQL, nil); err != nil {
			return fmt.Errorf("migration %s failed: %w", mig.Name, err)
		}
	}
	return nil
}
