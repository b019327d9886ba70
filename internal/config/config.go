// Package config loads application settings from viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/aromance/internal/common"
)

// Config is the full application configuration.
type Config struct {
	Treasury string
	Ledger   LedgerConfig
	Wallet   WalletConfig
	Agents   AgentsConfig
	Storage  StorageConfig
	Metrics  MetricsConfig
	Retry    RetryConfig
}

// LedgerConfig points at the service of record.
type LedgerConfig struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// WalletConfig configures the wallet bridge.
type WalletConfig struct {
	BridgeURL string
	Host      string
	ServiceID string
	Timeout   time.Duration
}

// AgentsConfig holds the base URL of every AI agent.
type AgentsConfig struct {
	Consultation   string
	Recommendation string
	Analytics      string
	Inventory      string
	Timeout        time.Duration
}

// StorageConfig holds local database paths.
type StorageConfig struct {
	LedgerPath  string
	JournalPath string
}

// MetricsConfig configures the metrics listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string
}

// RetryConfig bounds retries of read calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ledger.url", "http://127.0.0.1:4943")
	v.SetDefault("ledger.timeout", 30*time.Second)
	v.SetDefault("ledger.rate_limit", 20.0)
	v.SetDefault("ledger.burst", 5)

	v.SetDefault("wallet.bridge_url", "http://127.0.0.1:8787")
	v.SetDefault("wallet.host", "https://aromance.app")
	v.SetDefault("wallet.timeout", 60*time.Second)

	v.SetDefault("agents.consultation", "http://localhost:8001")
	v.SetDefault("agents.recommendation", "http://localhost:8002")
	v.SetDefault("agents.analytics", "http://localhost:8004")
	v.SetDefault("agents.inventory", "http://localhost:8005")
	v.SetDefault("agents.timeout", 8*time.Second)

	v.SetDefault("storage.ledger_path", filepath.Join(DataDir(), "ledger.db"))
	v.SetDefault("storage.journal_path", filepath.Join(DataDir(), "journal.db"))

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", 200*time.Millisecond)
	v.SetDefault("retry.max_delay", 2*time.Second)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Treasury: strings.TrimSpace(v.GetString("treasury")),
		Ledger: LedgerConfig{
			URL:       v.GetString("ledger.url"),
			Timeout:   v.GetDuration("ledger.timeout"),
			RateLimit: v.GetFloat64("ledger.rate_limit"),
			Burst:     v.GetInt("ledger.burst"),
		},
		Wallet: WalletConfig{
			BridgeURL: v.GetString("wallet.bridge_url"),
			Host:      v.GetString("wallet.host"),
			ServiceID: v.GetString("wallet.service_id"),
			Timeout:   v.GetDuration("wallet.timeout"),
		},
		Agents: AgentsConfig{
			Consultation:   v.GetString("agents.consultation"),
			Recommendation: v.GetString("agents.recommendation"),
			Analytics:      v.GetString("agents.analytics"),
			Inventory:      v.GetString("agents.inventory"),
			Timeout:        v.GetDuration("agents.timeout"),
		},
		Storage: StorageConfig{
			LedgerPath:  ExpandPath(v.GetString("storage.ledger_path")),
			JournalPath: ExpandPath(v.GetString("storage.journal_path")),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		Retry: RetryConfig{
			MaxAttempts:  v.GetInt("retry.max_attempts"),
			InitialDelay: v.GetDuration("retry.initial_delay"),
			MaxDelay:     v.GetDuration("retry.max_delay"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	urls := []struct {
		key, value string
	}{
		{"ledger.url", c.Ledger.URL},
		{"wallet.bridge_url", c.Wallet.BridgeURL},
		{"agents.consultation", c.Agents.Consultation},
		{"agents.recommendation", c.Agents.Recommendation},
		{"agents.analytics", c.Agents.Analytics},
		{"agents.inventory", c.Agents.Inventory},
	}
	for _, u := range urls {
		if u.value == "" {
			return fmt.Errorf("%w: %s", common.ErrMissingConfig, u.key)
		}
		parsed, err := url.Parse(u.value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute URL, got %q", common.ErrInvalidConfig, u.key, u.value)
		}
	}

	if c.Ledger.RateLimit < 0 {
		return fmt.Errorf("%w: ledger.rate_limit cannot be negative", common.ErrInvalidConfig)
	}
	if c.Agents.Timeout <= 0 {
		return fmt.Errorf("%w: agents.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("%w: retry delays must satisfy 0 <= initial_delay <= max_delay", common.ErrInvalidConfig)
	}
	return nil
}

// LoadEnvFile loads variables from a .env file into the process
// environment. A missing file is not an error. Existing variables win.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(ExpandPath(path)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
