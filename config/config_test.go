package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.Equal(t, "local", cfg.Env)
	require.Equal(t, 50, cfg.RateLimitRPS)
	require.FileExists(t, path)

	// Loading again reads the persisted file.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":7000\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.RPCAddress)
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.Equal(t, 1024, cfg.EventBuffer)
	require.Equal(t, 100, cfg.LogMaxSizeMB)
}

func TestLoadRejectsConflictingAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":7000\"\nMetricsAddress = \":7000\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
