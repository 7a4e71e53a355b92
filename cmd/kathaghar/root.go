package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the kathaghar CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kathaghar",
		Short: "Kathaghar storytelling platform backend",
		Long: `Kathaghar stores users, tales and reading analytics in SurrealDB and
exchanges email/password credentials for signed session tokens.

Configuration comes from KATHAGHAR_* environment variables, an optional
.env file, an optional --config YAML file, and the flags below.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path (YAML)")
	flags.String("database-url", "", "SurrealDB URL, e.g. ws://localhost:8000")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json or text")

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPingCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}
