// Package daemon manages the JudgePay server lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all server configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// NodeConfig identifies the default account this node acts as.
type NodeConfig struct {
	Account string `toml:"account"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LedgerConfig controls escrow ledger behavior and storage.
type LedgerConfig struct {
	Dir                  string `toml:"dir"`
	DefaultDeadlineHours int64  `toml:"default_deadline_hours"`
}

// TelemetryConfig controls the optional observability surface.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := judgepayHome()
	return Config{
		Node: NodeConfig{
			Account: "local",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8990,
		},
		Ledger: LedgerConfig{
			Dir:                  homeDir,
			DefaultDeadlineHours: 24,
		},
		Telemetry: TelemetryConfig{
			Prometheus: false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "judgepay.log"),
		},
	}
}

// LoadConfig reads config from ~/.judgepay/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(judgepayHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Ledger.Dir == "" {
		cfg.Ledger.Dir = judgepayHome()
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.judgepay/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(judgepayHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// judgepayHome returns the JudgePay data directory.
func judgepayHome() string {
	if env := os.Getenv("JUDGEPAY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".judgepay")
}

// Home is exported for use by other packages.
func Home() string {
	return judgepayHome()
}
