package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duplexpay/duplexd/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("ledger address is required", func(t *testing.T) {
		t.Setenv("DUPLEXD_DATADIR", t.TempDir())
		_, err := config.LoadConfig()
		require.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DUPLEXD_DATADIR", filepath.Join(t.TempDir(), "duplexd"))
		t.Setenv("DUPLEXD_LEDGER_ADDR", "ledger-main")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "badger", cfg.DbType)
		require.Equal(t, uint32(7100), cfg.HTTPPort)
		require.Equal(t, int64(10), cfg.MinDisputeTimeout)
		require.Equal(t, int64(86400), cfg.MaxDisputeTimeout)
		require.False(t, cfg.BalanceLimitEnabled)
		// The resolver defaults to the ledger address.
		require.Equal(t, cfg.Ledger(), cfg.Resolver())
		require.DirExists(t, cfg.Datadir)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("DUPLEXD_DATADIR", t.TempDir())
		t.Setenv("DUPLEXD_LEDGER_ADDR", "ledger-main")
		t.Setenv("DUPLEXD_RESOLVER_ADDR", "resolver-main")
		t.Setenv("DUPLEXD_OWNER_ADDR", "owner-main")
		t.Setenv("DUPLEXD_HTTP_PORT", "9000")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		require.Equal(t, uint32(9000), cfg.HTTPPort)
		require.Equal(t, "resolver-main", string(cfg.Resolver()))
		require.Equal(t, "owner-main", string(cfg.Owner()))
	})
}

func TestParseBalanceLimits(t *testing.T) {
	cfg := &config.Config{}
	limits, err := cfg.ParseBalanceLimits()
	require.NoError(t, err)
	require.Empty(t, limits)

	cfg.BalanceLimits = "native=1000000, ab12cdef=500000"
	limits, err = cfg.ParseBalanceLimits()
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{
		"native":   1000000,
		"ab12cdef": 500000,
	}, limits)

	cfg.BalanceLimits = "native"
	_, err = cfg.ParseBalanceLimits()
	require.Error(t, err)

	cfg.BalanceLimits = "native=lots"
	_, err = cfg.ParseBalanceLimits()
	require.Error(t, err)
}
