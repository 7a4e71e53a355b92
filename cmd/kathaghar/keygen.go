package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/pkg/jwt"
)

// NewKeygenCmd creates the keygen subcommand.
func NewKeygenCmd() *cobra.Command {
	var privatePath, publicPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the RSA key pair that signs session tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKeygen(cmd, privatePath, publicPath, force)
		},
	}

	cmd.Flags().StringVar(&privatePath, "private", "./keys/private.pem", "private key output path")
	cmd.Flags().StringVar(&publicPath, "public", "./keys/public.pem", "public key output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing keys")
	return cmd
}

func runKeygen(cmd *cobra.Command, privatePath, publicPath string, force bool) error {
	if !force {
		for _, p := range []string{privatePath, publicPath} {
			if _, err := os.Stat(p); err == nil {
				return oops.Code("KEY_EXISTS").With("path", p).Hint("pass --force to overwrite").
					Errorf("%s already exists", p)
			}
		}
	}

	for _, p := range []string{privatePath, publicPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return oops.Code("KEYGEN_FAILED").With("path", p).Wrap(err)
		}
	}

	if err := jwt.GenerateKeyPair(privatePath, publicPath); err != nil {
		return oops.Code("KEYGEN_FAILED").Wrap(err)
	}

	cmd.Printf("Wrote %s and %s\n", privatePath, publicPath)
	return nil
}
