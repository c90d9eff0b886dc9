package main

import (
	"context"
	"fmt"
	"os"

	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup initializes everything a fresh install needs: the config file, the
// credential key file, and the snapshot store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		r.writePlain("✓ Config file exists: %s\n", configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Config file created: %s\n", configPath)

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.configPath = configPath
	}

	keyPath, err := r.keyPath()
	if err != nil {
		return err
	}
	if _, err := shared.LoadOrCreateKey(keyPath); err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	r.writePlain("✓ Credential key file ready: %s\n", keyPath)

	r.logger.Info("initializing store", "backend", r.config.Storage.Backend, "path", r.config.Storage.Path)
	if _, err := r.ensureStore(ctx); err != nil {
		return err
	}
	switch r.config.Storage.Backend {
	case "redis":
		r.writePlain("✓ Store ready: redis at %s\n", r.config.Storage.RedisAddr)
	default:
		r.writePlain("✓ Store ready: %s\n", r.config.Storage.Path)
	}

	r.writePlainln("Next steps:")
	r.writePlain("1. Add your Discogs consumer key/secret (or a personal token) to %s\n", configPath)
	r.writePlain("2. Run 'crates auth login' to authorize your account\n")
	r.writePlain("3. Run 'crates sync' to pull your collection\n")

	return nil
}
