package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the application configuration file (TOML).
type Config struct {
	DatabasePath string `toml:"database_path"`
	ProbeAddress string `toml:"probe_address"`
	LogLevel     string `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &Config{
		DatabasePath: filepath.Join(homeDir, ".chatter", "chatter.db"),
		ProbeAddress: "1.1.1.1:53",
		LogLevel:     "info",
	}, nil
}

// Load reads the configuration file at path, filling unset fields with
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
