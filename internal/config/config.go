package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for idp-store.
type Config struct {
	// Directory holding the store database. Created on startup when
	// missing.
	StoreDir string `env:"STORE_DIR" envDefault:"data"`

	// Database file name inside StoreDir.
	StoreFile string `env:"STORE_FILE" envDefault:"idp-store.db"`

	// Optional YAML file of client and resource registrations applied
	// on startup and re-applied on change.
	SeedFile string `env:"SEED_FILE"`

	// Interval between expired-grant sweeps.
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve StoreDir to an absolute path at startup so the database
	// location does not shift with the working directory.
	absDir, err := filepath.Abs(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("resolving store dir to absolute path: %w", err)
	}

	cfg.StoreDir = absDir

	return cfg, nil
}

func (c *Config) validate() error {
	if c.StoreFile == "" {
		return fmt.Errorf("STORE_FILE must not be empty")
	}

	if c.ReaperInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be positive")
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			return fmt.Errorf("SEED_FILE %s: %w", c.SeedFile, err)
		}
	}

	return nil
}

// StorePath returns the full path of the store database file.
func (c *Config) StorePath() string {
	return filepath.Join(c.StoreDir, c.StoreFile)
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
