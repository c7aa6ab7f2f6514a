package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-backed defaults for CLI flags. Flags always win:
// a command only consults the config when its flag was left unset.
type Config struct {
	Database string `env:"FABULA_DB"`
	SeedDir  string `env:"FABULA_SEED"`
	MaxDepth int    `env:"FABULA_MAX_DEPTH" envDefault:"100"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment config: %w", err)
	}
	if cfg.MaxDepth <= 0 {
		return Config{}, fmt.Errorf("FABULA_MAX_DEPTH must be positive, got %d", cfg.MaxDepth)
	}
	return cfg, nil
}

// resolveDatabase applies the flag-over-env precedence for the database path.
func resolveDatabase(flagValue string, cfg Config) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Database != "" {
		return cfg.Database, nil
	}
	return "", NewExitError(ExitCommandError, "no database: pass --db or set FABULA_DB")
}

// resolveSeedDir applies the flag-over-env precedence for the seed directory.
// An empty result is valid: seeds are optional for most commands.
func resolveSeedDir(flagValue string, cfg Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.SeedDir
}
