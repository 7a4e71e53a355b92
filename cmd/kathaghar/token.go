package main

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/kathaghar/api/internal/model"
)

// NewTokenCmd creates the token subcommand.
func NewTokenCmd() *cobra.Command {
	var email string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for an existing account",
		Long: `Look up an account by email and print a signed session token for it,
for use as "Authorization: Bearer <token>" during development.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, email, asJSON)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runToken(cmd *cobra.Command, email string, asJSON bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a := newApp(cfg)
	defer a.close()

	sessions, err := a.sessions()
	if err != nil {
		return err
	}

	user, found, err := a.users.GetByEmail(cmd.Context(), model.NormalizeEmail(email))
	if err != nil {
		return oops.Code("USER_LOOKUP_FAILED").With("email", email).Wrap(err)
	}
	if !found {
		return oops.Code("USER_NOT_FOUND").With("email", email).Errorf("no account for %s", email)
	}

	token, err := sessions.Issue(cmd.Context(), user.Identity())
	if err != nil {
		return oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"token":      token.Value,
			"token_type": "Bearer",
			"expires_at": token.ExpiresAt,
			"user_id":    user.ID,
			"email":      user.Email,
		})
	}

	cmd.Printf("User:     %s (%s)\n", user.ID, user.Email)
	cmd.Printf("Expires:  %s\n\n", token.ExpiresAt.Format(time.RFC3339))
	cmd.Println(token.Value)
	return nil
}
