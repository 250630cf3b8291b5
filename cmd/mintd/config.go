// config.go - Configuration management for the mint daemon
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecash/internal/group"
)

// Config represents the mint daemon configuration
type Config struct {
	// Network
	ListenAddr string `json:"listen_addr"`

	// Keyset
	Curve         string   `json:"curve"`
	Denominations []uint64 `json:"denominations"`
	SeedFile      string   `json:"seed_file"`

	// Spent set
	LedgerDir      string `json:"ledger_dir"`
	InMemoryLedger bool   `json:"in_memory_ledger"`
	CacheSize      int    `json:"cache_size"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	EnableAudit     bool   `json:"enable_audit"`
	AuditLogPath    string `json:"audit_log_path"`
	RateLimitBurst  int    `json:"rate_limit_burst"`
	RateLimitRefill int    `json:"rate_limit_refill"`
	RateLimitPeriod string `json:"rate_limit_period"`
	// EnableIssue serves unpaid issuance on POST /v1/issue.
	EnableIssue bool `json:"enable_issue"`

	// Performance
	Signers         int `json:"signers"`
	ShutdownSeconds int `json:"shutdown_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      "127.0.0.1:3338",
		Curve:           "secp256k1",
		Denominations:   powersOfTwo(16),
		SeedFile:        "mint.seed",
		LedgerDir:       "ledger",
		CacheSize:       100000,
		LogLevel:        "info",
		LogFile:         "mintd.log",
		EnableAudit:     true,
		AuditLogPath:    "audit.log",
		RateLimitBurst:  60,
		RateLimitRefill: 1,
		RateLimitPeriod: "1s",
		EnableIssue:     false,
		Signers:         4,
		ShutdownSeconds: 10,
	}
}

func powersOfTwo(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = 1 << i
	}
	return out
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if errors.Is(err, os.ErrNotExist) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	// fields missing from the file keep their defaults
	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// RefillPeriod parses RateLimitPeriod.
func (c *Config) RefillPeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.RateLimitPeriod)
	if err != nil {
		return 0, fmt.Errorf("rate_limit_period: %w", err)
	}
	return d, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if _, err := group.ByName(c.Curve); err != nil {
		return fmt.Errorf("curve: %w", err)
	}
	if len(c.Denominations) == 0 {
		return fmt.Errorf("denominations must not be empty")
	}
	seen := make(map[uint64]bool, len(c.Denominations))
	for _, d := range c.Denominations {
		if d == 0 {
			return fmt.Errorf("denominations must be positive")
		}
		if seen[d] {
			return fmt.Errorf("denomination %d listed twice", d)
		}
		seen[d] = true
	}
	if c.SeedFile == "" {
		return fmt.Errorf("seed_file must be set")
	}
	if !c.InMemoryLedger && c.LedgerDir == "" {
		return fmt.Errorf("ledger_dir must be set unless in_memory_ledger is true")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if c.EnableAudit && c.AuditLogPath == "" {
		return fmt.Errorf("audit_log_path must be set when enable_audit is true")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate limit burst and refill must be positive")
	}
	if d, err := c.RefillPeriod(); err != nil {
		return err
	} else if d <= 0 {
		return fmt.Errorf("rate_limit_period must be positive")
	}
	if c.Signers <= 0 {
		return fmt.Errorf("signers must be positive")
	}
	if c.ShutdownSeconds <= 0 {
		return fmt.Errorf("shutdown_seconds must be positive")
	}
	return nil
}
