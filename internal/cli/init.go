// Package cli provides common CLI initialization utilities shared by the
// commands under cmd/.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"

	"classbook/internal/backend"
	"classbook/internal/config"
	"classbook/internal/log"
)

// SetupLogger builds a text logger at the given level writing to out and
// sets it as the default logger. Unknown levels fall back to info.
func SetupLogger(out io.Writer, level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level, _ = config.ParseLogLevel(level)
	cfg.Output = out
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(filenames ...string) {
	_ = godotenv.Load(filenames...)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend creates the snapshot store selected by cfg. The caller owns
// the returned result and must Close it.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}
	return res, nil
}
