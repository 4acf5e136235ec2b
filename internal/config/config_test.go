package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/config"
)

func TestLoadRequiresWorkspaceRoot(t *testing.T) {
	prior, wasSet := os.LookupEnv("DOCFLOW_WORKSPACE_ROOT")
	require.NoError(t, os.Unsetenv("DOCFLOW_WORKSPACE_ROOT"))
	t.Cleanup(func() {
		if wasSet {
			os.Setenv("DOCFLOW_WORKSPACE_ROOT", prior)
		}
	})

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadAppliesDefaultsAndGeneratesAPIKey(t *testing.T) {
	t.Setenv("DOCFLOW_WORKSPACE_ROOT", "/workspace")
	t.Setenv("DOCFLOW_API_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/workspace", cfg.WorkspaceRoot)
	require.Equal(t, 3, cfg.RenderCircuitThreshold)
	require.NotEmpty(t, cfg.APIKey)
}

func TestDurationHelpers(t *testing.T) {
	t.Setenv("DOCFLOW_WORKSPACE_ROOT", "/workspace")
	t.Setenv("DOCFLOW_RENDER_CIRCUIT_COOLDOWN_MS", "2000")
	t.Setenv("DOCFLOW_API_KEY", "fixed-key")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, cfg.RenderCircuitCooldown())
	require.Equal(t, "fixed-key", cfg.APIKey)
}
