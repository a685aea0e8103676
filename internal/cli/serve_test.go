package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandRegistered(t *testing.T) {
	found := false
	for _, cmd := range GetRootCmd().Commands() {
		if cmd.Name() == "serve" {
			found = true
			assert.NotNil(t, cmd.RunE)
		}
	}
	assert.True(t, found, "serve command should be registered")
}

func TestRunServeRejectsMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("KISCHAT_ANTHROPIC_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "kischat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data_dir": "`+dir+`"}`), 0o600))

	oldCfg := cfgFile
	cfgFile = path
	defer func() { cfgFile = oldCfg }()

	err := runServe(serveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}
