package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pario-ai/promptgate/pkg/ledger"
	"github.com/pario-ai/promptgate/pkg/models"
)

const dateLayout = "2006-01-02"

func newLedgerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Query and manage the encrypted audit ledger",
	}
	cmd.AddCommand(
		newLedgerSearchCmd(configPath),
		newLedgerShowCmd(configPath),
		newLedgerStatsCmd(configPath),
		newLedgerFlagCmd(configPath),
		newLedgerCleanupCmd(configPath),
	)
	return cmd
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date (use YYYY-MM-DD): %w", flag, err)
	}
	return t, nil
}

func newLedgerSearchCmd(configPath *string) *cobra.Command {
	var (
		from, to string
		decision string
		riskType string
		user     string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search ledger entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := models.LedgerQueryOpts{
				Decision: models.Decision(strings.ToUpper(decision)),
				Risk:     models.RiskType(strings.ToUpper(riskType)),
				UserID:   user,
				Limit:    limit,
			}
			var err error
			if opts.From, err = parseDate("from", from); err != nil {
				return err
			}
			if opts.To, err = parseDate("to", to); err != nil {
				return err
			}
			if !opts.To.IsZero() {
				// --to is inclusive of the whole day.
				opts.To = opts.To.Add(24*time.Hour - time.Nanosecond)
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

			entries, err := s.QueryLogEntries(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLogEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&decision, "decision", "", "ALLOW, MASK or BLOCK")
	cmd.Flags().StringVar(&riskType, "risk", "", "filter by risk type")
	cmd.Flags().StringVar(&user, "user", "", "filter by triggering user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries to return (default 200)")
	return cmd
}

func newLedgerShowCmd(configPath *string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Decrypt and show a single ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			v, err := openVault(cfg)
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := s.QueryLogEntries(ctx, models.LedgerQueryOpts{ID: id, Limit: 1})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entry found for that id.")
				return nil
			}

			r, err := ledger.New(v, s, zerolog.Nop()).Reveal(entries[0])
			if err != nil {
				return err
			}
			fmt.Fprint(out, formatRevealed(r))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "ledger entry id")
	return cmd
}

func newLedgerStatsCmd(configPath *string) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count entries by decision and risk type",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseDate("since", since)
			if err != nil {
				return err
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

			stats, err := s.LedgerStats(ctx, t)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatLedgerStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	return cmd
}

func newLedgerFlagCmd(configPath *string) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "flag",
		Short: "Mark a ledger entry as a false positive",
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

			if err := s.MarkFalsePositive(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entry %s marked as false positive.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "ledger entry id")
	return cmd
}

func newLedgerCleanupCmd(configPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete ledger entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Ledger.RetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("no retention period: pass --days or set ledger.retention_days")
			}

			ctx := context.Background()
			s, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := s.Cleanup(ctx, time.Now().Add(-time.Duration(days)*24*time.Hour))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d ledger entries.\n", deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "delete entries older than this many days")
	return cmd
}
