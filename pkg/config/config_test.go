package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataguild/contractguard/pkg/config"
	"github.com/dataguild/contractguard/pkg/govtypes"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONTRACTGUARD_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 4, cfg.SemanticFanOut)
	assert.Equal(t, 32, cfg.SemanticInFlightCap)
	assert.Equal(t, govtypes.StrategyAdaptive, cfg.DefaultStrategy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SEMANTIC_FAN_OUT", "8")
	t.Setenv("DEFAULT_STRATEGY", "THOROUGH")
	t.Setenv("CONTRACTGUARD_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.SemanticFanOut)
	assert.Equal(t, govtypes.StrategyThorough, cfg.DefaultStrategy)
}

func TestLoad_YAMLOverlayTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("semantic_fan_out: 16\ndefault_strategy: FAST\n"), 0o644))

	t.Setenv("SEMANTIC_FAN_OUT", "4")
	t.Setenv("CONTRACTGUARD_CONFIG", path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.SemanticFanOut)
	assert.Equal(t, govtypes.StrategyFast, cfg.DefaultStrategy)
}
