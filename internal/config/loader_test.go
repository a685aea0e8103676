package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		loader := NewLoader(filepath.Join(tmpDir, "missing.json"))

		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, 4096, cfg.Claude.MaxTokens)
		assert.NotEmpty(t, cfg.SettingsFile)
		assert.NotEmpty(t, cfg.Logging.File)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "kischat.json")
		data := `{
			"anthropic_api_key": "sk-ant-test",
			"server": {"port": 9000},
			"mcp": {"command": "python", "args": ["-m", "kis_mcp"]},
			"data_dir": "` + tmpDir + `"
		}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		loader := NewLoader(path)
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "sk-ant-test", cfg.AnthropicAPIKey)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "python", cfg.MCP.Command)
		assert.Equal(t, []string{"-m", "kis_mcp"}, cfg.MCP.Args)
		assert.Equal(t, filepath.Join(tmpDir, "settings.json"), cfg.SettingsFile)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("KIS_APP_KEY", "PSenvkey")

		tmpDir := t.TempDir()
		loader := NewLoader(filepath.Join(tmpDir, "missing.json"))
		cfg, err := loader.Load()
		require.NoError(t, err)

		assert.Equal(t, "PSenvkey", cfg.KISAppKey)
		assert.True(t, cfg.HasLiveCredentials())
	})
}
