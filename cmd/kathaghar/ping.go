package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewPingCmd creates the ping subcommand.
func NewPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the database is reachable",
		RunE:  runPing,
	}
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.close()

	start := time.Now()
	db, err := a.connect(cmd.Context())
	if err != nil {
		return err
	}
	if err := db.Ping(cmd.Context()); err != nil {
		return oops.Code("DB_PING_FAILED").With("url", cfg.Database.URL).Wrap(err)
	}

	cmd.Printf("ok %s ns=%s db=%s (%s)\n", cfg.Database.URL, cfg.Database.Namespace, cfg.Database.Name,
		time.Since(start).Round(time.Millisecond))
	return nil
}
