package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/ledger"
	"github.com/pario-ai/promptgate/pkg/metrics"
	"github.com/pario-ai/promptgate/pkg/pipeline"
	"github.com/pario-ai/promptgate/pkg/proxy"
	"github.com/pario-ai/promptgate/pkg/upstream"
	"github.com/pario-ai/promptgate/pkg/vault"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			// A missing master key is fatal at startup.
			v, err := openVault(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			terms, closeRedis, err := blacklistStore(cfg, s, log)
			if err != nil {
				return err
			}
			defer closeRedis()

			gw, err := upstream.New(cfg.Upstream.BaseURL, upstream.WithTimeout(cfg.Upstream.Timeout))
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			p, err := pipeline.New(pipeline.Config{
				Provider:                 cfg.Upstream.Provider,
				DefaultModel:             cfg.Upstream.DefaultModel,
				LogFailedAttempts:        cfg.Pipeline.LogFailedAttempts,
				SharedCredentialFallback: cfg.Pipeline.Credentials.SharedFallback,
				Explain: pipeline.ExplainConfig{
					Enabled:                 cfg.Pipeline.Explain.Enabled,
					SkipOnCredentialFailure: cfg.Pipeline.Explain.SkipOnCredentialFailure,
				},
			}, pipeline.Deps{
				Auth:        auth.NewResolver(s, log),
				Blacklist:   terms,
				Credentials: s,
				Vault:       v,
				Upstream:    gw,
				Ledger:      ledger.New(v, s, log),
				Metrics:     metrics.New(reg),
				Log:         log,
			})
			if err != nil {
				return err
			}

			go ledger.NewRetention(s, cfg.Ledger.RetentionDays, log).Run(ctx)

			srv := proxy.New(p, proxy.Options{
				Listen:          cfg.Listen,
				IncludeAnalysis: cfg.Server.IncludeAnalysis,
				CORSOrigins:     cfg.Server.CORSOrigins,
				Sessions:        auth.NewSessionVerifier(cfg.Session.JWTSecret, cfg.Session.Issuer),
				Gatherer:        reg,
				Log:             log,
			})

			log.Info().
				Str("storage", cfg.Storage.Driver).
				Str("provider", cfg.Upstream.Provider).
				Bool("redis", cfg.Redis.Addr != "").
				Msg("starting promptgate")
			return srv.ListenAndServe(ctx)
		},
	}
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a base64 master key for the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
