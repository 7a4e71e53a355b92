package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the embedded SurrealDB schema: tables, field assertions and the
unique email index. Every statement is idempotent, so re-running is safe.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.close()

	cmd.Println("Connecting to database...")
	db, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}

	migrations, err := database.Migrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read schema").Wrap(err)
	}

	cmd.Printf("Applying %d schema file(s)...\n", len(migrations))
	if err := database.Migrate(cmd.Context(), db); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
