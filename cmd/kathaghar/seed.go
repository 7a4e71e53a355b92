package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/internal/service"
)

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var req service.SeedRequest
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or remove demo accounts and tales",
		Long: `Create demo accounts, each with a number of tales, for development.
Every seeded account uses the password "` + service.SeedPassword + `".
With --cleanup, remove everything created under --prefix instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, req, cleanup)
		},
	}

	cmd.Flags().IntVar(&req.Users, "users", 5, "accounts to create (1-1000)")
	cmd.Flags().IntVar(&req.TalesPerUser, "tales-per-user", 3, "tales per account (0-100)")
	cmd.Flags().IntVar(&req.PrivateEvery, "private-every", 4, "make every Nth tale private (0 for none)")
	cmd.Flags().StringVar(&req.Prefix, "prefix", "seed_", "email prefix marking seeded data")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove seeded data instead of creating it")
	return cmd
}

func runSeed(cmd *cobra.Command, req service.SeedRequest, cleanup bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.close()

	seeder := service.NewSeederService(service.SeederServiceConfig{
		Users: a.users,
		Tales: a.tales,
		Conn:  a.manager,
	})

	if cleanup {
		res, err := seeder.Cleanup(cmd.Context(), req.Prefix)
		if err != nil {
			return oops.Code("SEED_CLEANUP_FAILED").With("prefix", req.Prefix).Wrap(err)
		}
		cmd.Printf("Removed %d account(s) and %d tale(s) in %dms\n", res.Users, res.Tales, res.Duration)
		return nil
	}

	res, err := seeder.Seed(cmd.Context(), req)
	if err != nil {
		return oops.Code("SEED_FAILED").With("users", req.Users).Wrap(err)
	}
	cmd.Printf("Created %d account(s) and %d tale(s) in %dms\n", len(res.Users), len(res.Tales), res.Duration)
	cmd.Printf("Password for every account: %s\n", service.SeedPassword)
	return nil
}
