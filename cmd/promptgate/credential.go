package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptgate/pkg/models"
)

const (
	scopeGlobal = "global"
	scopeUser   = "user"
)

func newCredentialCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage sealed provider credentials",
	}
	cmd.AddCommand(
		newCredentialSetCmd(configPath),
		newCredentialListCmd(configPath),
		newCredentialDeleteCmd(configPath),
	)
	return cmd
}

func newCredentialSetCmd(configPath *string) *cobra.Command {
	var provider, scope, user string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Seal and store a provider API key read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner *string
			switch scope {
			case scopeGlobal:
			case scopeUser:
				if user == "" {
					return fmt.Errorf("--user is required for user scope")
				}
				owner = &user
			default:
				return fmt.Errorf("--scope must be %s or %s", scopeGlobal, scopeUser)
			}

			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			key := strings.TrimSpace(line)
			if key == "" {
				return fmt.Errorf("no key on stdin")
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			v, err := openVault(cfg)
			if err != nil {
				return err
			}
			sealed, err := v.SealString(key)
			if err != nil {
				return err
			}

			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			cred := &models.ProviderCredential{Provider: provider, Key: sealed, UserID: owner}
			if err := s.UpsertCredential(ctx, cred); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential %s saved (%s, %s scope).\n", cred.ID, provider, scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "openai", "provider name")
	cmd.Flags().StringVar(&scope, "scope", scopeUser, "global or user")
	cmd.Flags().StringVar(&user, "user", "", "owning user id for user scope")
	return cmd
}

func newCredentialListCmd(configPath *string) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials visible to a user; key material is never shown",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			creds, err := s.ListCredentials(ctx, user)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatCredentials(creds))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id; empty lists shared credentials only")
	return cmd
}

func newCredentialDeleteCmd(configPath *string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a credential",
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

			if err := s.DeleteCredential(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential %s deleted.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "credential id")
	return cmd
}
