package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/duplexpay/duplexd/internal/core/domain"
)

type Config struct {
	Datadir  string `mapstructure:"DATADIR"`
	DbType   string `mapstructure:"DB_TYPE"`
	HTTPPort uint32 `mapstructure:"HTTP_PORT"`
	LogLevel uint32 `mapstructure:"LOG_LEVEL"`

	// LedgerAddr identifies this ledger instance; channel ids derive
	// from it, so it must stay stable for the datadir's lifetime.
	LedgerAddr   string `mapstructure:"LEDGER_ADDR"`
	OwnerAddr    string `mapstructure:"OWNER_ADDR"`
	ResolverAddr string `mapstructure:"RESOLVER_ADDR"`

	MinDisputeTimeout int64 `mapstructure:"MIN_DISPUTE_TIMEOUT"`
	MaxDisputeTimeout int64 `mapstructure:"MAX_DISPUTE_TIMEOUT"`

	BalanceLimitEnabled bool `mapstructure:"BALANCE_LIMIT_ENABLED"`
	// BalanceLimits is a comma-separated token=cap list, e.g.
	// "native=1000000,ab12..ef=500000".
	BalanceLimits string `mapstructure:"BALANCE_LIMITS"`

	// ConditionGatewayURL switches the condition client to the HTTP
	// gateway; empty keeps the in-process registry.
	ConditionGatewayURL string `mapstructure:"CONDITION_GATEWAY_URL"`
}

var defaults = map[string]any{
	"DATADIR":               "duplexd",
	"DB_TYPE":               "badger",
	"HTTP_PORT":             7100,
	"LOG_LEVEL":             4,
	"LEDGER_ADDR":           "",
	"OWNER_ADDR":            "",
	"RESOLVER_ADDR":         "",
	"MIN_DISPUTE_TIMEOUT":   10,
	"MAX_DISPUTE_TIMEOUT":   86400,
	"BALANCE_LIMIT_ENABLED": false,
	"BALANCE_LIMITS":        "",
	"CONDITION_GATEWAY_URL": "",
}

func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("DUPLEXD")
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %v", err)
	}

	if config.LedgerAddr == "" {
		return nil, fmt.Errorf("DUPLEXD_LEDGER_ADDR must be set")
	}
	if config.ResolverAddr == "" {
		config.ResolverAddr = config.LedgerAddr
	}

	if err := config.initDatadir(); err != nil {
		return nil, fmt.Errorf("error initializing data directory: %w", err)
	}
	return &config, nil
}

func (c *Config) initDatadir() error {
	datadir := cleanAndExpandPath(c.Datadir)
	c.Datadir = datadir
	return makeDirectoryIfNotExists(datadir)
}

// ParseBalanceLimits turns the token=cap list into the per-token map
// the balance-limit policy consumes.
func (c *Config) ParseBalanceLimits() (map[string]uint64, error) {
	limits := make(map[string]uint64)
	if c.BalanceLimits == "" {
		return limits, nil
	}
	for _, entry := range strings.Split(c.BalanceLimits, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed balance limit entry %q", entry)
		}
		limit, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed balance limit cap in %q: %w", entry, err)
		}
		limits[parts[0]] = limit
	}
	return limits, nil
}

func (c *Config) Ledger() domain.Address {
	return domain.Address(c.LedgerAddr)
}

func (c *Config) Owner() domain.Address {
	return domain.Address(c.OwnerAddr)
}

func (c *Config) Resolver() domain.Address {
	return domain.Address(c.ResolverAddr)
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
