package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"asset-bank/core/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "assets", cfg.Project.Root)
	assert.Equal(t, []string{".go"}, cfg.Project.SourceExtensions)
	assert.Equal(t, 100, cfg.Project.TickMs)
	assert.True(t, cfg.Project.Watch)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "modules", cfg.Storage.Bucket)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PROJECT_ROOT=content\nSERVER_PORT=9000\n"), 0o644))
	t.Setenv("PROJECT_ROOT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PROJECT_TICK_MS", "50")
	t.Setenv("PROJECT_SOURCE_EXTENSIONS", ".go,.wat")
	t.Setenv("DATABASE_ENABLED", "true")

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "content", cfg.Project.Root)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Project.TickMs)
	assert.Equal(t, []string{".go", ".wat"}, cfg.Project.SourceExtensions)
	assert.True(t, cfg.Database.Enabled)
}
