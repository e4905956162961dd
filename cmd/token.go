package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/config"
)

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a participant",
		Long:  `Signs a token with the configured jwt_secret so local clients can call mutating routes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			a, err := identity.NewAuthority(cfg.JWTSecret, identity.WithTTL(cfg.TokenTTL))
			if err != nil {
				return err
			}
			token, err := a.Issue(subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "participant identity carried by the token")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
