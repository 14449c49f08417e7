package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/config"
	"github.com/pario-ai/promptgate/pkg/logging"
	"github.com/pario-ai/promptgate/pkg/store"
	"github.com/pario-ai/promptgate/pkg/store/rediscache"
	"github.com/pario-ai/promptgate/pkg/store/sqlstore"
	"github.com/pario-ai/promptgate/pkg/vault"
)

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, func(), error) {
	s, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.Storage.Driver), cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func openVault(cfg *config.Config) (*vault.Vault, error) {
	v, err := vault.NewFromBase64(cfg.Vault.Key())
	if err != nil {
		return nil, fmt.Errorf("open vault (set %s or vault.master_key): %w", cfg.Vault.MasterKeyEnv, err)
	}
	return v, nil
}

// blacklistStore puts the Redis snapshot in front of s when Redis is
// configured.
func blacklistStore(cfg *config.Config, s store.BlacklistAdmin, log zerolog.Logger) (store.BlacklistAdmin, func(), error) {
	if cfg.Redis.Addr == "" {
		return s, func() {}, nil
	}
	client, err := rediscache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	return rediscache.New(client, s, cfg.Redis.BlacklistTTL, log), func() { _ = client.Close() }, nil
}
