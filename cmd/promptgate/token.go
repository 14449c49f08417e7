package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/models"
)

func newTokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue, revoke and list API tokens",
	}
	cmd.AddCommand(
		newTokenCreateCmd(configPath),
		newTokenRevokeCmd(configPath),
		newTokenListCmd(configPath),
	)
	return cmd
}

func newTokenCreateCmd(configPath *string) *cobra.Command {
	var name, user string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a token; the raw value is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			raw, hash, err := auth.NewToken()
			if err != nil {
				return err
			}
			tok := &models.APIToken{Name: name, TokenHash: hash, UserID: user}
			if err := s.CreateToken(ctx, tok); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token ID:  %s\n", tok.ID)
			fmt.Fprintf(out, "Token:     %s\n", raw)
			fmt.Fprintln(out, "Store this token now; it cannot be shown again.")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "default", "token label")
	cmd.Flags().StringVar(&user, "user", "", "owning user id")
	return cmd
}

func newTokenRevokeCmd(configPath *string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token permanently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := s.RevokeToken(ctx, id, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token %s revoked.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "token id")
	return cmd
}

func newTokenListCmd(configPath *string) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			toks, err := s.ListTokens(ctx, user)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatTokens(toks))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owning user id")
	return cmd
}
