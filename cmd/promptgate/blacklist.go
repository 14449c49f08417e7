package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/store"
)

func newBlacklistCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage dynamic blacklist terms",
	}
	cmd.AddCommand(
		newBlacklistAddCmd(configPath),
		newBlacklistListCmd(configPath),
		newBlacklistRemoveCmd(configPath),
	)
	return cmd
}

// withBlacklist opens the store, wrapped by the Redis cache when configured
// so writes drop the running servers' snapshot.
func withBlacklist(configPath string, fn func(ctx context.Context, b store.BlacklistAdmin) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	b, closeRedis, err := blacklistStore(cfg, s, log)
	if err != nil {
		return err
	}
	defer closeRedis()
	return fn(ctx, b)
}

func newBlacklistAddCmd(configPath *string) *cobra.Command {
	var term, riskType string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a blacklist term",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlacklist(*configPath, func(ctx context.Context, b store.BlacklistAdmin) error {
				t := &models.BlacklistTerm{Term: term, RiskType: models.RiskType(strings.ToUpper(riskType))}
				if err := b.AddTerm(ctx, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Term %s added (%s).\n", t.ID, t.RiskType)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&term, "term", "", "term to match, case-insensitive")
	cmd.Flags().StringVar(&riskType, "risk", string(models.RiskOther), "PII, JAILBREAK, TOXICITY or OTHER")
	return cmd
}

func newBlacklistListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blacklist terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlacklist(*configPath, func(ctx context.Context, b store.BlacklistAdmin) error {
				terms, err := b.ListTerms(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatTerms(terms))
				return nil
			})
		},
	}
}

func newBlacklistRemoveCmd(configPath *string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a blacklist term",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			return withBlacklist(*configPath, func(ctx context.Context, b store.BlacklistAdmin) error {
				if err := b.RemoveTerm(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Term %s removed.\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "term id")
	return cmd
}
